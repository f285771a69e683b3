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
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ActivityRecceHandler manages site-visit submissions from promoters.
// Recces are created from the mobile surface; admins review, update
// status, and export them.
type ActivityRecceHandler struct {
	db *gorm.DB
}

// NewActivityRecceHandler constructs an ActivityRecceHandler.
func NewActivityRecceHandler(db *gorm.DB) *ActivityRecceHandler {
	return &ActivityRecceHandler{db: db}
}

func validRecceStatus(s string) bool {
	switch s {
	case models.ActivityRecceStatusPending, models.ActivityRecceStatusApproved, models.ActivityRecceStatusRejected:
		return true
	}
	return false
}

// recceListQuery applies list filters plus the state scope.
func (h *ActivityRecceHandler) recceListQuery(c *gin.Context) *gorm.DB {
	q := h.db.WithContext(c.Request.Context()).Model(&models.ActivityRecce{})
	if searchQ := strings.TrimSpace(c.Query("search")); searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "village")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "remarks"),
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
	if promoterQ := strings.TrimSpace(c.Query("promoter_id")); promoterQ != "" {
		if promoterID, errParse := strconv.ParseUint(promoterQ, 10, 64); errParse == nil {
			q = q.Where("promoter_id = ?", promoterID)
		}
	}
	return q.Scopes(authz.ScopeByStates(GetPrincipal(c)))
}

// List returns recces visible to the caller.
func (h *ActivityRecceHandler) List(c *gin.Context) {
	params := parsePagination(c)
	q := h.recceListQuery(c)

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list recces failed"})
		return
	}
	var rows []models.ActivityRecce
	if errFind := q.Preload("Promoter").
		Order("created_at DESC").
		Limit(params.PerPage).Offset(params.Offset()).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list recces failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, recceBody(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out, "meta": pageMeta(params, total)})
}

// Get returns a recce by ID, subject to the caller's state scope.
func (h *ActivityRecceHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var recce models.ActivityRecce
	errFind := h.db.WithContext(c.Request.Context()).
		Scopes(authz.ScopeByStates(GetPrincipal(c))).
		Preload("Promoter").Preload("RoutePlan").
		First(&recce, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": recceBody(&recce)})
}

// updateRecceRequest defines the request body for review updates.
type updateRecceRequest struct {
	Status  *string `json:"status"`
	Remarks *string `json:"remarks"`
}

// Update changes a recce's review status or remarks.
func (h *ActivityRecceHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var body updateRecceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Status != nil {
		status := strings.TrimSpace(*body.Status)
		if !validRecceStatus(status) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"status": []string{"invalid status"}}})
			return
		}
		updates["status"] = status
	}
	if body.Remarks != nil {
		updates["remarks"] = strings.TrimSpace(*body.Remarks)
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.ActivityRecce{}).
		Scopes(authz.ScopeByStates(GetPrincipal(c))).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		log.WithError(res.Error).Error("update recce failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "recce updated"})
}

// Delete removes a recce.
func (h *ActivityRecceHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Scopes(authz.ScopeByStates(GetPrincipal(c))).
		Where("id = ?", id).
		Delete(&models.ActivityRecce{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "recce deleted"})
}

// BulkDelete removes recces in chunks and reports the actual count.
func (h *ActivityRecceHandler) BulkDelete(c *gin.Context) {
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
		res := h.db.WithContext(ctx).
			Scopes(authz.ScopeByStates(principal)).
			Where("id IN ?", chunk).
			Delete(&models.ActivityRecce{})
		if res.Error != nil {
			log.WithError(res.Error).Error("bulk delete recces failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "bulk delete failed", "deleted": deleted})
			return
		}
		deleted += res.RowsAffected
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "recces deleted", "deleted": deleted})
}

// BulkStatus updates recce review status in chunks and reports the actual count.
func (h *ActivityRecceHandler) BulkStatus(c *gin.Context) {
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
	if !validRecceStatus(status) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"status": []string{"invalid status"}}})
		return
	}

	ctx := c.Request.Context()
	principal := GetPrincipal(c)
	now := time.Now().UTC()
	var updated int64
	for _, chunk := range chunkIDs(body.IDs) {
		res := h.db.WithContext(ctx).Model(&models.ActivityRecce{}).
			Scopes(authz.ScopeByStates(principal)).
			Where("id IN ?", chunk).
			Updates(map[string]any{"status": status, "updated_at": now})
		if res.Error != nil {
			log.WithError(res.Error).Error("bulk recce status update failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "bulk status update failed", "updated": updated})
			return
		}
		updated += res.RowsAffected
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "status updated", "updated": updated})
}

// Export streams the visible recces as CSV.
func (h *ActivityRecceHandler) Export(c *gin.Context) {
	var rows []models.ActivityRecce
	if errFind := h.recceListQuery(c).Preload("Promoter").Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="activity_recces.csv"`)
	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"id", "promoter", "state", "district", "village", "latitude", "longitude", "status", "visit_date", "remarks", "created_at"})
	for _, row := range rows {
		promoterName := ""
		if row.Promoter != nil {
			promoterName = row.Promoter.Name
		}
		visitDate := ""
		if row.VisitDate != nil {
			visitDate = row.VisitDate.UTC().Format("2006-01-02")
		}
		_ = writer.Write([]string{
			strconv.FormatUint(row.ID, 10),
			promoterName,
			row.State,
			row.District,
			row.Village,
			strconv.FormatFloat(row.Latitude, 'f', -1, 64),
			strconv.FormatFloat(row.Longitude, 'f', -1, 64),
			row.Status,
			visitDate,
			row.Remarks,
			row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writer.Flush()
}

// recceBody serializes a recce for responses.
func recceBody(recce *models.ActivityRecce) gin.H {
	body := gin.H{
		"id":            recce.ID,
		"promoter_id":   recce.PromoterID,
		"route_plan_id": recce.RoutePlanID,
		"state":         recce.State,
		"district":      recce.District,
		"village":       recce.Village,
		"latitude":      recce.Latitude,
		"longitude":     recce.Longitude,
		"close_shot":    recce.CloseShot,
		"long_shot":     recce.LongShot,
		"photos":        recce.Photos,
		"remarks":       recce.Remarks,
		"status":        recce.Status,
		"visit_date":    recce.VisitDate,
		"created_at":    recce.CreatedAt,
		"updated_at":    recce.UpdatedAt,
	}
	if recce.Promoter != nil {
		body["promoter"] = gin.H{
			"id":       recce.Promoter.ID,
			"name":     recce.Promoter.Name,
			"username": recce.Promoter.Username,
		}
	}
	return body
}
