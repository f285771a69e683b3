package models

import "time"

// SuperAdminRole is the seeded role that bypasses permission and scope checks.
const SuperAdminRole = "Super Admin"

// Role bundles permissions under a name.
type Role struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null;uniqueIndex"` // Unique role name.
	Description string `gorm:"type:text"`                      // Human description.

	Permissions []Permission `gorm:"many2many:role_permissions"` // Granted permissions.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Permission is an atomic named capability such as "promoters.view".
type Permission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null;uniqueIndex"` // Unique permission key.
	GuardName   string `gorm:"type:text;not null;default:api"` // Authentication realm.
	Description string `gorm:"type:text"`                      // Human description.
	Module      string `gorm:"type:text"`                      // UI grouping.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
