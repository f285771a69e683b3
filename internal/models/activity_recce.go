package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityRecce status values.
const (
	ActivityRecceStatusPending  = "pending"
	ActivityRecceStatusApproved = "approved"
	ActivityRecceStatusRejected = "rejected"
)

// ActivityRecce is a site-visit submission from a promoter,
// scoped by its state and district columns.
type ActivityRecce struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PromoterID  uint64    `gorm:"not null;index"`          // Submitting promoter.
	Promoter    *Promoter `gorm:"foreignKey:PromoterID"`   // Submitting promoter record.
	RoutePlanID *uint64   `gorm:"index"`                   // Visited route plan, if any.
	RoutePlan   *RoutePlan `gorm:"foreignKey:RoutePlanID"` // Visited route plan record.

	State    string `gorm:"type:text;not null;index"` // Scoping state.
	District string `gorm:"type:text;not null;index"` // Scoping district.
	Village  string `gorm:"type:text"`                // Village name.

	Latitude  float64 `gorm:"type:decimal(10,7)"` // Visit latitude.
	Longitude float64 `gorm:"type:decimal(10,7)"` // Visit longitude.

	CloseShot string         `gorm:"type:text"`                    // Close-shot photo URL.
	LongShot  string         `gorm:"type:text"`                    // Long-shot photo URL.
	Photos    datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Additional photo URLs.

	Remarks string `gorm:"type:text"`                            // Free-text remarks.
	Status  string `gorm:"type:text;not null;default:'pending'"` // Review status.

	VisitDate *time.Time ``                        // Date of the site visit.
	CreatedAt time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
