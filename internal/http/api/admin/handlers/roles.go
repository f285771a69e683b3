package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fieldwave/promoter-backoffice/internal/authz"
	dbutil "github.com/fieldwave/promoter-backoffice/internal/db"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RoleHandler manages roles and permission assignment.
type RoleHandler struct {
	db *gorm.DB
}

// NewRoleHandler constructs a RoleHandler.
func NewRoleHandler(db *gorm.DB) *RoleHandler {
	return &RoleHandler{db: db}
}

// roleRequest defines the request body for role create/update.
type roleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// Create creates a role with a permission set.
func (h *RoleHandler) Create(c *gin.Context) {
	var body roleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"name": []string{"name is required"}}})
		return
	}
	perms, status, errBody := h.resolvePermissions(c, body.Permissions)
	if errBody != nil {
		c.JSON(status, errBody)
		return
	}

	role := models.Role{
		Name:        name,
		Description: strings.TrimSpace(body.Description),
		Permissions: perms,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&role).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"name": []string{"role name already taken"}}})
			return
		}
		log.WithError(errCreate).Error("create role failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "create role failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": roleBody(&role)})
}

// List returns all roles with their permissions.
func (h *RoleHandler) List(c *gin.Context) {
	var roles []models.Role
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Permissions").
		Order("name ASC").
		Find(&roles).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list roles failed"})
		return
	}
	out := make([]gin.H, 0, len(roles))
	for i := range roles {
		out = append(out, roleBody(&roles[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

// Get returns a role by ID.
func (h *RoleHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var role models.Role
	errFind := h.db.WithContext(c.Request.Context()).Preload("Permissions").First(&role, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": roleBody(&role)})
}

// Update modifies a role; a permissions list replaces the set.
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var body roleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	perms, status, errBody := h.resolvePermissions(c, body.Permissions)
	if errBody != nil {
		c.JSON(status, errBody)
		return
	}

	ctx := c.Request.Context()
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"updated_at": time.Now().UTC()}
		if name := strings.TrimSpace(body.Name); name != "" {
			updates["name"] = name
		}
		if desc := strings.TrimSpace(body.Description); desc != "" {
			updates["description"] = desc
		}
		res := tx.Model(&models.Role{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		role := models.Role{ID: id}
		return tx.Model(&role).Association("Permissions").Replace(perms)
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		log.WithError(errTx).Error("update role failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "update role failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "role updated"})
}

// Delete removes a role and its links. Users keep their other roles.
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	ctx := c.Request.Context()
	var role models.Role
	if errFind := h.db.WithContext(ctx).First(&role, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errPerms := tx.Model(&role).Association("Permissions").Clear(); errPerms != nil {
			return errPerms
		}
		if errUsers := tx.Exec("DELETE FROM user_roles WHERE role_id = ?", id).Error; errUsers != nil {
			return errUsers
		}
		return tx.Delete(&models.Role{}, id).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("delete role failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "delete role failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "role deleted"})
}

// ListPermissions returns all permission definitions grouped by module.
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	grouped := make(map[string][]gin.H)
	for _, key := range authz.Keys() {
		def, _ := authz.KeyDefinition(key)
		grouped[def.Module] = append(grouped[def.Module], gin.H{
			"key":    key,
			"label":  def.Label,
			"module": def.Module,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": grouped})
}

// resolvePermissions validates keys and loads the permission rows.
func (h *RoleHandler) resolvePermissions(c *gin.Context, keys []string) ([]models.Permission, int, gin.H) {
	normalized := authz.NormalizePermissions(keys)
	if unknown, ok := authz.ValidatePermissions(normalized); !ok {
		return nil, http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"permissions": []string{"unknown permission: " + unknown}}}
	}
	var perms []models.Permission
	if len(normalized) > 0 {
		if errFind := h.db.WithContext(c.Request.Context()).Where("name IN ?", normalized).Find(&perms).Error; errFind != nil {
			return nil, http.StatusInternalServerError, gin.H{"success": false, "message": "load permissions failed"}
		}
	}
	return perms, 0, nil
}

// roleBody serializes a role for responses.
func roleBody(role *models.Role) gin.H {
	perms := make([]string, 0, len(role.Permissions))
	for _, perm := range role.Permissions {
		perms = append(perms, perm.Name)
	}
	return gin.H{
		"id":          role.ID,
		"name":        role.Name,
		"description": role.Description,
		"permissions": authz.NormalizePermissions(perms),
		"created_at":  role.CreatedAt,
		"updated_at":  role.UpdatedAt,
	}
}
