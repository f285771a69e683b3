package authz

import (
	"sort"
	"strings"
)

// Definition describes an admin permission and the route it gates.
type Definition struct {
	Key    string `json:"key"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Label  string `json:"label"`
	Module string `json:"module"`
}

// RouteKey builds the method+path lookup key for a route.
func RouteKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// NormalizePermissions trims, de-duplicates, and sorts permission keys.
func NormalizePermissions(perms []string) []string {
	if len(perms) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	sort.Strings(normalized)
	return normalized
}

// ValidatePermissions reports the first unknown permission key, if any.
func ValidatePermissions(perms []string) (string, bool) {
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := definitionsByKey[trimmed]; !ok {
			return trimmed, false
		}
	}
	return "", true
}

// Definitions returns a copy of all permission definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// RequiredPermission returns the permission key gating a route, if one exists.
func RequiredPermission(method, path string) (string, bool) {
	def, ok := definitionsByRoute[RouteKey(method, path)]
	if !ok {
		return "", false
	}
	return def.Key, true
}

// newDefinition builds a Definition bound to a route.
func newDefinition(key, method, path, label, module string) Definition {
	return Definition{
		Key:    key,
		Method: strings.ToUpper(method),
		Path:   path,
		Label:  label,
		Module: module,
	}
}

// definitions is the ordered list of permission definitions.
var definitions = []Definition{
	newDefinition("users.view", "GET", "/v0/admin/users", "List Users", "Users"),
	newDefinition("users.view", "GET", "/v0/admin/users/:id", "Get User", "Users"),
	newDefinition("users.create", "POST", "/v0/admin/users", "Create User", "Users"),
	newDefinition("users.edit", "PUT", "/v0/admin/users/:id", "Update User", "Users"),
	newDefinition("users.delete", "DELETE", "/v0/admin/users/:id", "Delete User", "Users"),
	newDefinition("users.edit", "POST", "/v0/admin/users/:id/enable", "Enable User", "Users"),
	newDefinition("users.edit", "POST", "/v0/admin/users/:id/disable", "Disable User", "Users"),
	newDefinition("users.edit", "PUT", "/v0/admin/users/:id/password", "Change User Password", "Users"),

	newDefinition("users.states.view", "GET", "/v0/admin/users/:id/states", "List User States", "User States"),
	newDefinition("users.states.assign", "POST", "/v0/admin/users/:id/states", "Assign User States", "User States"),
	newDefinition("users.states.remove", "DELETE", "/v0/admin/users/:id/states", "Remove User State", "User States"),

	newDefinition("roles.view", "GET", "/v0/admin/roles", "List Roles", "Roles"),
	newDefinition("roles.view", "GET", "/v0/admin/roles/:id", "Get Role", "Roles"),
	newDefinition("roles.create", "POST", "/v0/admin/roles", "Create Role", "Roles"),
	newDefinition("roles.edit", "PUT", "/v0/admin/roles/:id", "Update Role", "Roles"),
	newDefinition("roles.delete", "DELETE", "/v0/admin/roles/:id", "Delete Role", "Roles"),
	newDefinition("roles.view", "GET", "/v0/admin/permissions", "List Permission Definitions", "Roles"),

	newDefinition("promoters.view", "GET", "/v0/admin/promoters", "List Promoters", "Promoters"),
	newDefinition("promoters.view", "GET", "/v0/admin/promoters/:id", "Get Promoter", "Promoters"),
	newDefinition("promoters.create", "POST", "/v0/admin/promoters", "Create Promoter", "Promoters"),
	newDefinition("promoters.edit", "PUT", "/v0/admin/promoters/:id", "Update Promoter", "Promoters"),
	newDefinition("promoters.delete", "DELETE", "/v0/admin/promoters/:id", "Delete Promoter", "Promoters"),
	newDefinition("promoters.delete", "POST", "/v0/admin/promoters/bulk-delete", "Bulk Delete Promoters", "Promoters"),
	newDefinition("promoters.edit", "POST", "/v0/admin/promoters/bulk-status", "Bulk Update Promoter Status", "Promoters"),
	newDefinition("promoters.reset-device", "POST", "/v0/admin/promoters/:id/reset-device", "Reset Promoter Device", "Promoters"),
	newDefinition("promoters.export", "GET", "/v0/admin/promoters/export", "Export Promoters", "Promoters"),

	newDefinition("route_plans.view", "GET", "/v0/admin/route-plans", "List Route Plans", "Route Plans"),
	newDefinition("route_plans.view", "GET", "/v0/admin/route-plans/:id", "Get Route Plan", "Route Plans"),
	newDefinition("route_plans.create", "POST", "/v0/admin/route-plans", "Create Route Plan", "Route Plans"),
	newDefinition("route_plans.edit", "PUT", "/v0/admin/route-plans/:id", "Update Route Plan", "Route Plans"),
	newDefinition("route_plans.delete", "DELETE", "/v0/admin/route-plans/:id", "Delete Route Plan", "Route Plans"),
	newDefinition("route_plans.export", "GET", "/v0/admin/route-plans/export", "Export Route Plans", "Route Plans"),

	newDefinition("activity_recces.view", "GET", "/v0/admin/activity-recces", "List Activity Recces", "Activity Recces"),
	newDefinition("activity_recces.view", "GET", "/v0/admin/activity-recces/:id", "Get Activity Recce", "Activity Recces"),
	newDefinition("activity_recces.edit", "PUT", "/v0/admin/activity-recces/:id", "Update Activity Recce", "Activity Recces"),
	newDefinition("activity_recces.delete", "DELETE", "/v0/admin/activity-recces/:id", "Delete Activity Recce", "Activity Recces"),
	newDefinition("activity_recces.delete", "POST", "/v0/admin/activity-recces/bulk-delete", "Bulk Delete Activity Recces", "Activity Recces"),
	newDefinition("activity_recces.edit", "POST", "/v0/admin/activity-recces/bulk-status", "Bulk Update Activity Recce Status", "Activity Recces"),
	newDefinition("activity_recces.export", "GET", "/v0/admin/activity-recces/export", "Export Activity Recces", "Activity Recces"),

	newDefinition("states.view", "GET", "/v0/admin/states/available", "List Available States", "States"),
}

// definitionsByRoute provides METHOD+path lookup for the permission middleware.
var definitionsByRoute = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[RouteKey(def.Method, def.Path)] = def
	}
	return out
}()

// definitionsByKey provides permission-key lookup for validation and seeding.
// Multiple routes can share one key; the first definition wins.
var definitionsByKey = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		if _, ok := out[def.Key]; !ok {
			out[def.Key] = def
		}
	}
	return out
}()

// Keys returns the sorted set of distinct permission keys.
func Keys() []string {
	out := make([]string, 0, len(definitionsByKey))
	for key := range definitionsByKey {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// KeyDefinition returns the representative definition for a permission key.
func KeyDefinition(key string) (Definition, bool) {
	def, ok := definitionsByKey[key]
	return def, ok
}

// PromoterAppPermissions are the capabilities granted to every promoter
// session in the field app. Promoters are not back-office users and do
// not carry per-key permission grants.
var PromoterAppPermissions = []string{
	"app.profile.view",
	"app.route_plans.view",
	"app.activity_recces.create",
}
