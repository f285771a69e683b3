package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/fieldwave/promoter-backoffice/internal/statecache"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StateHandler serves the distinct states present in the data, used by
// the back-office UI to populate filter dropdowns and state assignment
// pickers. Results are cached; visibility filtering still happens per
// request against the caller's principal.
type StateHandler struct {
	db     *gorm.DB
	states *statecache.Cache
}

// NewStateHandler constructs a StateHandler.
func NewStateHandler(db *gorm.DB, states *statecache.Cache) *StateHandler {
	return &StateHandler{db: db, states: states}
}

const availableStatesCacheKey = "available-states"

// Available returns the union of distinct states across promoters,
// route plans, and recces.
func (h *StateHandler) Available(c *gin.Context) {
	values, errLoad := h.states.Get(c.Request.Context(), availableStatesCacheKey, h.loadStates)
	if errLoad != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list states failed"})
		return
	}

	principal := GetPrincipal(c)
	if principal != nil && !principal.Unrestricted() {
		allowed := make(map[string]struct{}, len(principal.States))
		for _, state := range principal.States {
			allowed[state] = struct{}{}
		}
		visible := make([]string, 0, len(values))
		for _, state := range values {
			if _, ok := allowed[state]; ok {
				visible = append(visible, state)
			}
		}
		values = visible
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": values})
}

func (h *StateHandler) loadStates(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, model := range []any{&models.Promoter{}, &models.RoutePlan{}, &models.ActivityRecce{}} {
		var states []string
		errFind := h.db.WithContext(ctx).Model(model).
			Distinct("state").
			Where("state <> ''").
			Pluck("state", &states).Error
		if errFind != nil {
			return nil, errFind
		}
		for _, state := range states {
			seen[state] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for state := range seen {
		out = append(out, state)
	}
	sort.Strings(out)
	return out, nil
}
