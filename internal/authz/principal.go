package authz

import (
	"context"
	"fmt"

	"github.com/fieldwave/promoter-backoffice/internal/models"
	"gorm.io/gorm"
)

// Principal is the resolved identity for one request: the user, the union of
// role-derived and directly granted permissions, and the state-visibility
// scope. It is computed once per request and never cached across requests.
type Principal struct {
	UserID   uint64
	Username string

	// SuperAdmin bypasses permission checks and state scoping.
	SuperAdmin bool

	permissions map[string]struct{}

	// States is the set of active assigned state names.
	// HasStateRows distinguishes "no assignment" (unrestricted) from an
	// assignment whose active rows happen to be empty (sees nothing).
	States       []string
	HasStateRows bool
}

// Has reports whether the principal holds the permission key.
func (p *Principal) Has(permission string) bool {
	if p == nil {
		return false
	}
	if p.SuperAdmin {
		return true
	}
	_, ok := p.permissions[permission]
	return ok
}

// Permissions returns the sorted effective permission set.
func (p *Principal) Permissions() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.permissions))
	for key := range p.permissions {
		out = append(out, key)
	}
	return NormalizePermissions(out)
}

// Unrestricted reports whether state scoping does not apply to the principal.
func (p *Principal) Unrestricted() bool {
	if p == nil {
		return false
	}
	return p.SuperAdmin || !p.HasStateRows
}

// LoadPrincipal resolves the principal for a user in a single pass:
// roles with their permissions, direct grants, and state assignments.
func LoadPrincipal(ctx context.Context, conn *gorm.DB, user *models.User) (*Principal, error) {
	if conn == nil || user == nil {
		return nil, fmt.Errorf("authz: nil db or user")
	}

	var roles []models.Role
	if errRoles := conn.WithContext(ctx).
		Model(user).
		Preload("Permissions").
		Association("Roles").
		Find(&roles); errRoles != nil {
		return nil, fmt.Errorf("authz: load roles: %w", errRoles)
	}

	var direct []models.Permission
	if errDirect := conn.WithContext(ctx).
		Model(user).
		Association("Permissions").
		Find(&direct); errDirect != nil {
		return nil, fmt.Errorf("authz: load direct permissions: %w", errDirect)
	}

	var stateRows []models.UserState
	if errStates := conn.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Order("state ASC").
		Find(&stateRows).Error; errStates != nil {
		return nil, fmt.Errorf("authz: load user states: %w", errStates)
	}

	principal := &Principal{
		UserID:      user.ID,
		Username:    user.Username,
		permissions: make(map[string]struct{}),
	}
	for _, role := range roles {
		if role.Name == models.SuperAdminRole {
			principal.SuperAdmin = true
		}
		for _, perm := range role.Permissions {
			principal.permissions[perm.Name] = struct{}{}
		}
	}
	for _, perm := range direct {
		principal.permissions[perm.Name] = struct{}{}
	}

	principal.HasStateRows = len(stateRows) > 0
	for _, row := range stateRows {
		if !row.IsActive {
			continue
		}
		principal.States = append(principal.States, row.State)
	}
	return principal, nil
}
