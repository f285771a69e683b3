package app

import (
	"path/filepath"
	"testing"

	"github.com/fieldwave/promoter-backoffice/internal/config"
	"github.com/fieldwave/promoter-backoffice/internal/db"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "app-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestCreateSuperAdmin_AssignsRole(t *testing.T) {
	conn := openTestDB(t)

	if errCreate := CreateSuperAdmin(conn, "admin", "password"); errCreate != nil {
		t.Fatalf("CreateSuperAdmin: %v", errCreate)
	}

	var user models.User
	if errFind := conn.Preload("Roles").Where("username = ?", "admin").First(&user).Error; errFind != nil {
		t.Fatalf("find user: %v", errFind)
	}
	if !user.Active {
		t.Fatalf("expected bootstrap admin to be active")
	}
	found := false
	for _, role := range user.Roles {
		if role.Name == models.SuperAdminRole {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bootstrap admin to hold the super admin role")
	}
	if user.Password == "password" {
		t.Fatalf("expected password to be hashed")
	}
}

func TestEnsureBootstrapAdmin_SkipsPopulatedDatabase(t *testing.T) {
	conn := openTestDB(t)

	existing := models.User{Username: "existing", Name: "Existing", Password: "x", Active: true}
	if errCreate := conn.Create(&existing).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	cfg := config.BootstrapConfig{AdminUsername: "admin", AdminPassword: "password"}
	if errEnsure := EnsureBootstrapAdmin(conn, cfg); errEnsure != nil {
		t.Fatalf("EnsureBootstrapAdmin: %v", errEnsure)
	}

	var count int64
	if errCount := conn.Model(&models.User{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected populated database to be left untouched, got %d users", count)
	}
}

func TestEnsureBootstrapAdmin_NoCredentialsIsNoop(t *testing.T) {
	conn := openTestDB(t)

	if errEnsure := EnsureBootstrapAdmin(conn, config.BootstrapConfig{}); errEnsure != nil {
		t.Fatalf("EnsureBootstrapAdmin: %v", errEnsure)
	}

	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		t.Fatalf("HasAdminInitialized: %v", errInit)
	}
	if initialized {
		t.Fatalf("expected no users to be created without credentials")
	}
}
