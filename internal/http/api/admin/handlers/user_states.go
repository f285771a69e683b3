package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserStateHandler manages per-user state-visibility assignments.
type UserStateHandler struct {
	db *gorm.DB
}

// NewUserStateHandler constructs a UserStateHandler.
func NewUserStateHandler(db *gorm.DB) *UserStateHandler {
	return &UserStateHandler{db: db}
}

// List returns the user's state assignments.
func (h *UserStateHandler) List(c *gin.Context) {
	userID, ok := h.resolveUser(c)
	if !ok {
		return
	}
	var rows []models.UserState
	errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("state ASC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list states failed"})
		return
	}
	states := make([]string, 0, len(rows))
	data := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		if row.IsActive {
			states = append(states, row.State)
		}
		data = append(data, gin.H{"state": row.State, "is_active": row.IsActive})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "states": states, "data": data})
}

// assignStatesRequest defines the request body for state assignment.
type assignStatesRequest struct {
	States []string `json:"states"`
}

// Assign replaces the user's full state-assignment set. An empty list clears
// all assignments, which means unrestricted access.
func (h *UserStateHandler) Assign(c *gin.Context) {
	userID, ok := h.resolveUser(c)
	if !ok {
		return
	}
	var body assignStatesRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}

	states := normalizeStates(body.States)

	ctx := c.Request.Context()
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errClear := tx.Where("user_id = ?", userID).Delete(&models.UserState{}).Error; errClear != nil {
			return errClear
		}
		for _, state := range states {
			row := models.UserState{UserID: userID, State: state, IsActive: true}
			if errCreate := tx.Create(&row).Error; errCreate != nil {
				return errCreate
			}
		}
		return nil
	})
	if errTx != nil {
		log.WithError(errTx).Error("assign user states failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "assign states failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "states assigned", "assigned_states": states})
}

// removeStateRequest defines the request body for removing one assignment.
type removeStateRequest struct {
	State string `json:"state"`
}

// Remove deletes one state assignment.
func (h *UserStateHandler) Remove(c *gin.Context) {
	userID, ok := h.resolveUser(c)
	if !ok {
		return
	}
	var body removeStateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	state := strings.TrimSpace(body.State)
	if state == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"state": []string{"state is required"}}})
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Where("user_id = ? AND state = ?", userID, state).
		Delete(&models.UserState{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "remove state failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "state not assigned"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "state removed"})
}

// resolveUser parses the :id parameter and verifies the user exists.
func (h *UserStateHandler) resolveUser(c *gin.Context) (uint64, bool) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return 0, false
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Select("id").First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "user not found"})
			return 0, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return 0, false
	}
	return id, true
}

// normalizeStates trims, de-duplicates, and sorts state names. Duplicate
// names in the request collapse to one assignment.
func normalizeStates(states []string) []string {
	seen := make(map[string]struct{}, len(states))
	out := make([]string, 0, len(states))
	for _, state := range states {
		trimmed := strings.TrimSpace(state)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}
