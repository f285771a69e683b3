package models

import "time"

// User represents an administrative back-office account.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Name     string `gorm:"type:text"`                      // Display name.
	Email    string `gorm:"type:text;index"`                // Email address.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Active bool `gorm:"not null;default:true"` // Whether the user can sign in.

	TOTPSecret string `gorm:"type:text"` // TOTP secret for MFA.

	Roles       []Role       `gorm:"many2many:user_roles"`       // Assigned roles.
	Permissions []Permission `gorm:"many2many:user_permissions"` // Direct permission grants.
	States      []UserState  `gorm:"foreignKey:UserID"`          // Assigned data-visibility states.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// UserState grants a user visibility into rows tagged with one state.
// A user with zero rows here sees all states.
type UserState struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex:idx_user_states_user_state"`           // Owning user.
	State  string `gorm:"type:text;not null;uniqueIndex:idx_user_states_user_state"` // State name.

	IsActive bool `gorm:"not null;default:true"` // Whether the assignment counts.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
