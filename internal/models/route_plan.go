package models

import "time"

// RoutePlan status values.
const (
	RoutePlanStatusActive   = "active"
	RoutePlanStatusInactive = "inactive"
	RoutePlanStatusPending  = "pending"
)

// RoutePlan is a planned wall-painting site on a promoter route.
// State and district double as the row-visibility scoping keys.
type RoutePlan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	State    string `gorm:"type:text;not null;index"` // Scoping state.
	District string `gorm:"type:text;not null;index"` // Scoping district.
	SubDepot string `gorm:"type:text"`                // Sub depot name.
	Village  string `gorm:"type:text"`                // Village name.

	WallCode  string  `gorm:"type:text"`                  // Wall identification code.
	Latitude  float64 `gorm:"type:decimal(10,7)"`         // Site latitude.
	Longitude float64 `gorm:"type:decimal(10,7)"`         // Site longitude.
	Width     float64 `gorm:"type:decimal(8,2)"`          // Wall width in feet.
	Height    float64 `gorm:"type:decimal(8,2)"`          // Wall height in feet.
	Area      float64 `gorm:"type:decimal(10,2)"`         // Wall area in square feet.
	Status    string  `gorm:"type:text;not null;default:'pending'"` // Lifecycle status.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
