package handlers

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fieldwave/promoter-backoffice/internal/authz"
	dbutil "github.com/fieldwave/promoter-backoffice/internal/db"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/fieldwave/promoter-backoffice/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PromoterHandler manages field promoter accounts.
type PromoterHandler struct {
	db *gorm.DB
}

// NewPromoterHandler constructs a PromoterHandler.
func NewPromoterHandler(db *gorm.DB) *PromoterHandler {
	return &PromoterHandler{db: db}
}

// createPromoterRequest defines the request body for promoter creation.
type createPromoterRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	State    string `json:"state"`
	District string `json:"district"`
	Status   string `json:"status"`
}

// Create creates a promoter account.
func (h *PromoterHandler) Create(c *gin.Context) {
	var body createPromoterRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	fieldErrors := gin.H{}
	if strings.TrimSpace(body.Name) == "" {
		fieldErrors["name"] = []string{"name is required"}
	}
	if strings.TrimSpace(body.Username) == "" {
		fieldErrors["username"] = []string{"username is required"}
	}
	if strings.TrimSpace(body.Password) == "" {
		fieldErrors["password"] = []string{"password is required"}
	}
	status := strings.TrimSpace(body.Status)
	if status == "" {
		status = models.PromoterStatusActive
	}
	if !models.ValidPromoterStatus(status) {
		fieldErrors["status"] = []string{"invalid status"}
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": fieldErrors})
		return
	}

	hash, errHash := security.HashPassword(strings.TrimSpace(body.Password))
	if errHash != nil {
		log.WithError(errHash).Error("hash password failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "create promoter failed"})
		return
	}

	promoter := models.Promoter{
		Name:     strings.TrimSpace(body.Name),
		Username: strings.TrimSpace(body.Username),
		Password: hash,
		State:    strings.TrimSpace(body.State),
		District: strings.TrimSpace(body.District),
		IsActive: true,
		Status:   status,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&promoter).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"username": []string{"username already taken"}}})
			return
		}
		log.WithError(errCreate).Error("create promoter failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "create promoter failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": promoterBody(&promoter)})
}

// promoterListQuery applies the common list filters plus the state scope.
func (h *PromoterHandler) promoterListQuery(c *gin.Context) *gorm.DB {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Promoter{})
	if searchQ := strings.TrimSpace(c.Query("search")); searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "username"),
			pattern, pattern,
		)
	}
	if stateQ := strings.TrimSpace(c.Query("state")); stateQ != "" {
		q = q.Where("state = ?", stateQ)
	}
	if districtQ := strings.TrimSpace(c.Query("district")); districtQ != "" {
		q = q.Where("district = ?", districtQ)
	}
	if statusQ := strings.TrimSpace(c.Query("status")); statusQ != "" {
		q = q.Where("status = ?", statusQ)
	}
	// Scope last so it conjoins with whatever the caller already narrowed.
	return q.Scopes(authz.ScopeByStates(GetPrincipal(c)))
}

// List returns promoters visible to the caller.
func (h *PromoterHandler) List(c *gin.Context) {
	params := parsePagination(c)
	q := h.promoterListQuery(c)

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list promoters failed"})
		return
	}
	var rows []models.Promoter
	if errFind := q.Order("created_at DESC").
		Limit(params.PerPage).Offset(params.Offset()).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list promoters failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, promoterBody(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out, "meta": pageMeta(params, total)})
}

// Get returns a promoter by ID, subject to the caller's state scope.
func (h *PromoterHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var promoter models.Promoter
	errFind := h.db.WithContext(c.Request.Context()).
		Scopes(authz.ScopeByStates(GetPrincipal(c))).
		First(&promoter, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": promoterBody(&promoter)})
}

// updatePromoterRequest defines the request body for promoter updates.
type updatePromoterRequest struct {
	Name     *string `json:"name"`
	State    *string `json:"state"`
	District *string `json:"district"`
	Status   *string `json:"status"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password"`
}

// Update modifies a promoter account.
func (h *PromoterHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var body updatePromoterRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		if name := strings.TrimSpace(*body.Name); name != "" {
			updates["name"] = name
		}
	}
	if body.State != nil {
		updates["state"] = strings.TrimSpace(*body.State)
	}
	if body.District != nil {
		updates["district"] = strings.TrimSpace(*body.District)
	}
	if body.Status != nil {
		status := strings.TrimSpace(*body.Status)
		if !models.ValidPromoterStatus(status) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"status": []string{"invalid status"}}})
			return
		}
		updates["status"] = status
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if body.Password != nil {
		if password := strings.TrimSpace(*body.Password); password != "" {
			hash, errHash := security.HashPassword(password)
			if errHash != nil {
				log.WithError(errHash).Error("hash password failed")
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "update failed"})
				return
			}
			updates["password"] = hash
		}
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Promoter{}).
		Scopes(authz.ScopeByStates(GetPrincipal(c))).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "promoter updated"})
}

// Delete removes a promoter and its access tokens.
func (h *PromoterHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	var promoter models.Promoter
	errFind := h.db.WithContext(ctx).
		Scopes(authz.ScopeByStates(GetPrincipal(c))).
		First(&promoter, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errTokens := tx.Where("promoter_id = ?", id).Delete(&models.PromoterToken{}).Error; errTokens != nil {
			return errTokens
		}
		return tx.Delete(&models.Promoter{}, id).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("delete promoter failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "promoter deleted"})
}

// bulkIDsRequest defines the request body for bulk delete.
type bulkIDsRequest struct {
	IDs []uint64 `json:"ids"`
}

// BulkDelete removes promoters in chunks and reports the actual count.
func (h *PromoterHandler) BulkDelete(c *gin.Context) {
	var body bulkIDsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	if len(body.IDs) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"ids": []string{"ids are required"}}})
		return
	}

	ctx := c.Request.Context()
	principal := GetPrincipal(c)
	var deleted int64
	for _, chunk := range chunkIDs(body.IDs) {
		if errTokens := h.db.WithContext(ctx).
			Where("promoter_id IN ?", chunk).
			Delete(&models.PromoterToken{}).Error; errTokens != nil {
			log.WithError(errTokens).Error("bulk delete promoter tokens failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "bulk delete failed", "deleted": deleted})
			return
		}
		res := h.db.WithContext(ctx).
			Scopes(authz.ScopeByStates(principal)).
			Where("id IN ?", chunk).
			Delete(&models.Promoter{})
		if res.Error != nil {
			log.WithError(res.Error).Error("bulk delete promoters failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "bulk delete failed", "deleted": deleted})
			return
		}
		deleted += res.RowsAffected
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "promoters deleted", "deleted": deleted})
}

// bulkStatusRequest defines the request body for bulk status updates.
type bulkStatusRequest struct {
	IDs    []uint64 `json:"ids"`
	Status string   `json:"status"`
}

// BulkStatus updates promoter status in chunks and reports the actual count.
func (h *PromoterHandler) BulkStatus(c *gin.Context) {
	var body bulkStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	if len(body.IDs) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"ids": []string{"ids are required"}}})
		return
	}
	status := strings.TrimSpace(body.Status)
	if !models.ValidPromoterStatus(status) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"status": []string{"invalid status"}}})
		return
	}

	ctx := c.Request.Context()
	principal := GetPrincipal(c)
	now := time.Now().UTC()
	var updated int64
	for _, chunk := range chunkIDs(body.IDs) {
		res := h.db.WithContext(ctx).Model(&models.Promoter{}).
			Scopes(authz.ScopeByStates(principal)).
			Where("id IN ?", chunk).
			Updates(map[string]any{"status": status, "updated_at": now})
		if res.Error != nil {
			log.WithError(res.Error).Error("bulk status update failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "bulk status update failed", "updated": updated})
			return
		}
		updated += res.RowsAffected
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "status updated", "updated": updated})
}

// ResetDevice clears a promoter's device binding and revokes all tokens,
// returning the account to the unbound state. Idempotent.
func (h *PromoterHandler) ResetDevice(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	var promoter models.Promoter
	errFind := h.db.WithContext(ctx).
		Scopes(authz.ScopeByStates(GetPrincipal(c))).
		First(&promoter, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}

	resetAt := time.Now().UTC()
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errTokens := tx.Where("promoter_id = ?", id).Delete(&models.PromoterToken{}).Error; errTokens != nil {
			return errTokens
		}
		return tx.Model(&models.Promoter{}).Where("id = ?", id).Updates(map[string]any{
			"device_id":    nil,
			"device_token": nil,
			"is_logged_in": false,
			"last_active":  resetAt,
			"updated_at":   resetAt,
		}).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("reset device failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "reset device failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "device binding reset",
		"data": gin.H{
			"promoter_id":   promoter.ID,
			"promoter_name": promoter.Name,
			"reset_at":      resetAt,
		},
	})
}

// Export streams the visible promoters as CSV.
func (h *PromoterHandler) Export(c *gin.Context) {
	var rows []models.Promoter
	if errFind := h.promoterListQuery(c).Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="promoters.csv"`)
	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"id", "name", "username", "state", "district", "status", "is_active", "is_logged_in", "app_version", "created_at"})
	for _, row := range rows {
		_ = writer.Write([]string{
			strconv.FormatUint(row.ID, 10),
			row.Name,
			row.Username,
			row.State,
			row.District,
			row.Status,
			strconv.FormatBool(row.IsActive),
			strconv.FormatBool(row.IsLoggedIn),
			row.AppVersion,
			row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writer.Flush()
}

// promoterBody serializes a promoter for responses. Password hashes and
// token material never leave the server.
func promoterBody(promoter *models.Promoter) gin.H {
	return gin.H{
		"id":           promoter.ID,
		"name":         promoter.Name,
		"username":     promoter.Username,
		"state":        promoter.State,
		"district":     promoter.District,
		"is_active":    promoter.IsActive,
		"status":       promoter.Status,
		"device_id":    promoter.DeviceID,
		"is_logged_in": promoter.IsLoggedIn,
		"app_version":  promoter.AppVersion,
		"last_active":  promoter.LastActive,
		"created_at":   promoter.CreatedAt,
		"updated_at":   promoter.UpdatedAt,
	}
}
