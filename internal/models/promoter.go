package models

import "time"

// Promoter status values.
const (
	PromoterStatusActive    = "active"
	PromoterStatusInactive  = "inactive"
	PromoterStatusPending   = "pending"
	PromoterStatusSuspended = "suspended"
)

// ValidPromoterStatus reports whether s is a known promoter status.
func ValidPromoterStatus(s string) bool {
	switch s {
	case PromoterStatusActive, PromoterStatusInactive, PromoterStatusPending, PromoterStatusSuspended:
		return true
	}
	return false
}

// Promoter is a field agent account for the mobile app, a separate
// authentication realm from back-office users.
type Promoter struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null"`             // Display name.
	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	State    string `gorm:"type:text;index"` // Assigned state.
	District string `gorm:"type:text;index"` // Assigned district.

	IsActive bool   `gorm:"not null;default:true"`                // Whether the account can sign in.
	Status   string `gorm:"type:text;not null;default:'active'"` // Lifecycle status.

	// DeviceID is the bound mobile device. Null means not yet bound.
	// Binding survives logout and is cleared only by an admin reset.
	DeviceID    *string `gorm:"type:text"`              // Bound device identifier.
	DeviceToken *string `gorm:"type:text"`              // Push notification token.
	IsLoggedIn  bool    `gorm:"not null;default:false"` // Active session flag.

	AppVersion string     `gorm:"type:text"` // Last reported app version.
	LastActive *time.Time ``                 // Last login or reset time.

	Tokens []PromoterToken `gorm:"foreignKey:PromoterID"` // Issued access tokens.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// PromoterToken is an opaque bearer token issued at mobile login.
// Only the SHA-256 of the token is stored.
type PromoterToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PromoterID uint64 `gorm:"not null;index"`                 // Owning promoter.
	TokenHash  string `gorm:"type:text;not null;uniqueIndex"` // SHA-256 hex of the token.

	LastUsedAt *time.Time ``                        // Last authenticated request.
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
