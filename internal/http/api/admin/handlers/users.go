package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	dbutil "github.com/fieldwave/promoter-backoffice/internal/db"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/fieldwave/promoter-backoffice/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserHandler manages back-office user accounts.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// createUserRequest defines the request body for user creation.
type createUserRequest struct {
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	RoleIDs  []uint64 `json:"role_ids"`
}

// Create creates a back-office user with optional role assignments.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	fieldErrors := gin.H{}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		fieldErrors["username"] = []string{"username is required"}
	}
	if strings.TrimSpace(body.Password) == "" {
		fieldErrors["password"] = []string{"password is required"}
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": fieldErrors})
		return
	}

	hash, errHash := security.HashPassword(strings.TrimSpace(body.Password))
	if errHash != nil {
		log.WithError(errHash).Error("hash password failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "create user failed"})
		return
	}

	var roles []models.Role
	if len(body.RoleIDs) > 0 {
		if errRoles := h.db.WithContext(c.Request.Context()).Where("id IN ?", body.RoleIDs).Find(&roles).Error; errRoles != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "create user failed"})
			return
		}
	}

	user := models.User{
		Username: username,
		Name:     strings.TrimSpace(body.Name),
		Email:    strings.TrimSpace(body.Email),
		Password: hash,
		Active:   true,
		Roles:    roles,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"username": []string{"username already taken"}}})
			return
		}
		log.WithError(errCreate).Error("create user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "create user failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": userBody(&user)})
}

// List returns users with optional filters and pagination.
func (h *UserHandler) List(c *gin.Context) {
	searchQ := strings.TrimSpace(c.Query("search"))
	params := parsePagination(c)

	q := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "username")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "email")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "name"),
			pattern, pattern, pattern,
		)
	}
	if activeQ := strings.TrimSpace(c.Query("active")); activeQ != "" {
		q = q.Where("active = ?", activeQ == "true" || activeQ == "1")
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list users failed"})
		return
	}
	var rows []models.User
	if errFind := q.Preload("Roles").Preload("States").
		Order("created_at DESC").
		Limit(params.PerPage).Offset(params.Offset()).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list users failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, userBody(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out, "meta": pageMeta(params, total)})
}

// Get returns a user by ID with roles and state assignments.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Roles").Preload("States").
		First(&user, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": userBody(&user)})
}

// updateUserRequest defines the request body for user updates.
type updateUserRequest struct {
	Username *string   `json:"username"`
	Name     *string   `json:"name"`
	Email    *string   `json:"email"`
	Active   *bool     `json:"active"`
	RoleIDs  *[]uint64 `json:"role_ids"`
}

// Update modifies a user account; role_ids, when present, replaces the set.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Username != nil {
		if username := strings.TrimSpace(*body.Username); username != "" {
			updates["username"] = username
		}
	}
	if body.Name != nil {
		updates["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Email != nil {
		updates["email"] = strings.TrimSpace(*body.Email)
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}

	ctx := c.Request.Context()
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if body.RoleIDs != nil {
			var roles []models.Role
			if len(*body.RoleIDs) > 0 {
				if errRoles := tx.Where("id IN ?", *body.RoleIDs).Find(&roles).Error; errRoles != nil {
					return errRoles
				}
			}
			user := models.User{ID: id}
			if errReplace := tx.Model(&user).Association("Roles").Replace(roles); errReplace != nil {
				return errReplace
			}
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		if dbutil.IsUniqueViolation(errTx) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"username": []string{"username already taken"}}})
			return
		}
		log.WithError(errTx).Error("update user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "user updated"})
}

// Delete removes a user together with its role links and state assignments.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if errFind := h.db.WithContext(ctx).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errStates := tx.Where("user_id = ?", id).Delete(&models.UserState{}).Error; errStates != nil {
			return errStates
		}
		if errRoles := tx.Model(&user).Association("Roles").Clear(); errRoles != nil {
			return errRoles
		}
		if errPerms := tx.Model(&user).Association("Permissions").Clear(); errPerms != nil {
			return errPerms
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("delete user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "user deleted"})
}

// Disable deactivates a user account.
func (h *UserHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

// Enable reactivates a user account.
func (h *UserHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

func (h *UserHandler) setActive(c *gin.Context, active bool) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	Password string `json:"password"`
}

// ChangePassword updates a user's password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"password": []string{"password is required"}}})
		return
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		log.WithError(errHash).Error("hash password failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "change password failed"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"password": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "change password failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "password changed"})
}

// userBody serializes a user for responses.
func userBody(user *models.User) gin.H {
	roles := make([]gin.H, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, gin.H{"id": role.ID, "name": role.Name})
	}
	states := make([]gin.H, 0, len(user.States))
	for _, state := range user.States {
		states = append(states, gin.H{"state": state.State, "is_active": state.IsActive})
	}
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"name":       user.Name,
		"email":      user.Email,
		"active":     user.Active,
		"roles":      roles,
		"states":     states,
		"created_at": user.CreatedAt,
		"updated_at": user.UpdatedAt,
	}
}
