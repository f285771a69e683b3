package db

import (
	"fmt"
	"strings"

	"github.com/fieldwave/promoter-backoffice/internal/authz"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate applies schema migrations and seeds permissions and default roles.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.Permission{},
		&models.Role{},
		&models.User{},
		&models.UserState{},
		&models.Promoter{},
		&models.PromoterToken{},
		&models.RoutePlan{},
		&models.ActivityRecce{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := seedPermissions(conn); errSeed != nil {
		return errSeed
	}
	if errSeed := seedDefaultRoles(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// seedPermissions inserts any permission definitions missing from the table.
func seedPermissions(conn *gorm.DB) error {
	for _, key := range authz.Keys() {
		def, _ := authz.KeyDefinition(key)
		perm := models.Permission{
			Name:        key,
			GuardName:   "api",
			Description: def.Label,
			Module:      def.Module,
		}
		if errUpsert := conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&perm).Error; errUpsert != nil {
			return fmt.Errorf("db: seed permission %s: %w", key, errUpsert)
		}
	}
	return nil
}

// defaultRolePermissions maps seeded roles to their permission keys.
// A "prefix.*" pattern grants every key under the prefix; "*" grants all.
var defaultRolePermissions = map[string][]string{
	models.SuperAdminRole: {"*"},
	"Admin":               {"users.*", "promoters.*", "route_plans.*", "activity_recces.*", "states.*"},
	"Moderator":           {"promoters.view", "promoters.edit", "route_plans.view", "route_plans.edit", "activity_recces.view", "activity_recces.edit", "states.view"},
	"Viewer":              {"users.view", "promoters.view", "route_plans.view", "activity_recces.view", "states.view"},
	"Agency":              {"promoters.view", "promoters.create", "promoters.edit", "route_plans.view", "activity_recces.view", "activity_recces.edit", "states.view"},
	"Agency View":         {"promoters.view", "route_plans.view", "activity_recces.view", "states.view"},
}

// seedDefaultRoles creates the standard roles once. Existing roles are left
// untouched so administrative edits survive restarts.
func seedDefaultRoles(conn *gorm.DB) error {
	for name, patterns := range defaultRolePermissions {
		var existing int64
		if errCount := conn.Model(&models.Role{}).Where("name = ?", name).Count(&existing).Error; errCount != nil {
			return fmt.Errorf("db: check role %s: %w", name, errCount)
		}
		if existing > 0 {
			continue
		}

		keys := expandPermissionPatterns(patterns)
		var perms []models.Permission
		if len(keys) > 0 {
			if errFind := conn.Where("name IN ?", keys).Find(&perms).Error; errFind != nil {
				return fmt.Errorf("db: load permissions for role %s: %w", name, errFind)
			}
		}
		role := models.Role{Name: name, Description: name + " (seeded)", Permissions: perms}
		if errCreate := conn.Create(&role).Error; errCreate != nil {
			if IsUniqueViolation(errCreate) {
				continue
			}
			return fmt.Errorf("db: seed role %s: %w", name, errCreate)
		}
	}
	return nil
}

// expandPermissionPatterns resolves "*" and "prefix.*" patterns to keys.
func expandPermissionPatterns(patterns []string) []string {
	all := authz.Keys()
	out := make([]string, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	add := func(key string) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	for _, pattern := range patterns {
		if pattern == "*" {
			for _, key := range all {
				add(key)
			}
			continue
		}
		if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
			for _, key := range all {
				if strings.HasPrefix(key, prefix+".") {
					add(key)
				}
			}
			continue
		}
		add(pattern)
	}
	return out
}
