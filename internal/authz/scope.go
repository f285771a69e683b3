package authz

import "gorm.io/gorm"

// ScopeByStates returns a GORM scope that narrows a query to rows whose state
// column falls inside the principal's visibility set. Prior constraints on the
// query are preserved; the state condition is conjoined.
//
// An unrestricted principal (super admin or no state assignment) passes the
// query through untouched. A principal whose assignment exists but has no
// active rows matches nothing.
func ScopeByStates(principal *Principal) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if principal == nil || principal.Unrestricted() {
			return tx
		}
		if len(principal.States) == 0 {
			// Assigned, but every row is inactive: sees nothing.
			return tx.Where("1 = 0")
		}
		return tx.Where("state IN ?", principal.States)
	}
}
