package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/fieldwave/promoter-backoffice/internal/config"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/fieldwave/promoter-backoffice/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// HasAdminInitialized reports whether any back-office user exists.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	var count int64
	if errCount := conn.Model(&models.User{}).Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("count users: %w", errCount)
	}
	return count > 0, nil
}

// CreateSuperAdmin creates a back-office user holding the Super Admin role.
func CreateSuperAdmin(conn *gorm.DB, username, password string) error {
	if conn == nil {
		return fmt.Errorf("create super admin: nil connection")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("create super admin: username is required")
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("create super admin: password is required")
	}

	hashedPassword, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("hash password: %w", errHash)
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if errRole := tx.Where("name = ?", models.SuperAdminRole).First(&role).Error; errRole != nil {
			return fmt.Errorf("load super admin role: %w", errRole)
		}
		user := models.User{
			Username: username,
			Name:     username,
			Password: hashedPassword,
			Active:   true,
		}
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return fmt.Errorf("create user: %w", errCreate)
		}
		if errAssign := tx.Model(&user).Association("Roles").Append(&role); errAssign != nil {
			return fmt.Errorf("assign role: %w", errAssign)
		}
		return nil
	})
}

// EnsureBootstrapAdmin seeds the first super admin on an empty database
// when bootstrap credentials are configured. A populated database is
// left untouched.
func EnsureBootstrapAdmin(conn *gorm.DB, cfg config.BootstrapConfig) error {
	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	if initialized {
		return nil
	}
	if cfg.AdminUsername == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		log.Warn("no users exist and no bootstrap admin credentials are configured")
		return nil
	}
	if errCreate := CreateSuperAdmin(conn, cfg.AdminUsername, cfg.AdminPassword); errCreate != nil {
		return errCreate
	}
	log.Infof("bootstrap admin %q created", cfg.AdminUsername)
	return nil
}
