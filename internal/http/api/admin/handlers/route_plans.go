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

// RoutePlanHandler manages wall-painting route plans.
type RoutePlanHandler struct {
	db *gorm.DB
}

// NewRoutePlanHandler constructs a RoutePlanHandler.
func NewRoutePlanHandler(db *gorm.DB) *RoutePlanHandler {
	return &RoutePlanHandler{db: db}
}

// routePlanRequest defines the request body for create and update.
type routePlanRequest struct {
	State     string  `json:"state"`
	District  string  `json:"district"`
	SubDepot  string  `json:"sub_depot"`
	Village   string  `json:"village"`
	WallCode  string  `json:"wall_code"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Status    string  `json:"status"`
}

func validRoutePlanStatus(s string) bool {
	switch s {
	case models.RoutePlanStatusActive, models.RoutePlanStatusInactive, models.RoutePlanStatusPending:
		return true
	}
	return false
}

// Create creates a route plan.
func (h *RoutePlanHandler) Create(c *gin.Context) {
	var body routePlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	fieldErrors := gin.H{}
	if strings.TrimSpace(body.State) == "" {
		fieldErrors["state"] = []string{"state is required"}
	}
	if strings.TrimSpace(body.District) == "" {
		fieldErrors["district"] = []string{"district is required"}
	}
	status := strings.TrimSpace(body.Status)
	if status == "" {
		status = models.RoutePlanStatusPending
	}
	if !validRoutePlanStatus(status) {
		fieldErrors["status"] = []string{"invalid status"}
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": fieldErrors})
		return
	}

	plan := models.RoutePlan{
		State:     strings.TrimSpace(body.State),
		District:  strings.TrimSpace(body.District),
		SubDepot:  strings.TrimSpace(body.SubDepot),
		Village:   strings.TrimSpace(body.Village),
		WallCode:  strings.TrimSpace(body.WallCode),
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
		Width:     body.Width,
		Height:    body.Height,
		Area:      body.Width * body.Height,
		Status:    status,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&plan).Error; errCreate != nil {
		log.WithError(errCreate).Error("create route plan failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "create route plan failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": routePlanBody(&plan)})
}

// routePlanListQuery applies list filters plus the state scope.
func (h *RoutePlanHandler) routePlanListQuery(c *gin.Context) *gorm.DB {
	q := h.db.WithContext(c.Request.Context()).Model(&models.RoutePlan{})
	if searchQ := strings.TrimSpace(c.Query("search")); searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "village")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "wall_code"),
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
	return q.Scopes(authz.ScopeByStates(GetPrincipal(c)))
}

// List returns route plans visible to the caller.
func (h *RoutePlanHandler) List(c *gin.Context) {
	params := parsePagination(c)
	q := h.routePlanListQuery(c)

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list route plans failed"})
		return
	}
	var rows []models.RoutePlan
	if errFind := q.Order("created_at DESC").
		Limit(params.PerPage).Offset(params.Offset()).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list route plans failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, routePlanBody(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out, "meta": pageMeta(params, total)})
}

// Get returns a route plan by ID, subject to the caller's state scope.
func (h *RoutePlanHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var plan models.RoutePlan
	errFind := h.db.WithContext(c.Request.Context()).
		Scopes(authz.ScopeByStates(GetPrincipal(c))).
		First(&plan, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": routePlanBody(&plan)})
}

// updateRoutePlanRequest defines the request body for updates.
type updateRoutePlanRequest struct {
	State     *string  `json:"state"`
	District  *string  `json:"district"`
	SubDepot  *string  `json:"sub_depot"`
	Village   *string  `json:"village"`
	WallCode  *string  `json:"wall_code"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Width     *float64 `json:"width"`
	Height    *float64 `json:"height"`
	Status    *string  `json:"status"`
}

// Update modifies a route plan.
func (h *RoutePlanHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var body updateRoutePlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}

	ctx := c.Request.Context()
	var plan models.RoutePlan
	errFind := h.db.WithContext(ctx).
		Scopes(authz.ScopeByStates(GetPrincipal(c))).
		First(&plan, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.State != nil {
		if state := strings.TrimSpace(*body.State); state != "" {
			updates["state"] = state
		}
	}
	if body.District != nil {
		if district := strings.TrimSpace(*body.District); district != "" {
			updates["district"] = district
		}
	}
	if body.SubDepot != nil {
		updates["sub_depot"] = strings.TrimSpace(*body.SubDepot)
	}
	if body.Village != nil {
		updates["village"] = strings.TrimSpace(*body.Village)
	}
	if body.WallCode != nil {
		updates["wall_code"] = strings.TrimSpace(*body.WallCode)
	}
	if body.Latitude != nil {
		updates["latitude"] = *body.Latitude
	}
	if body.Longitude != nil {
		updates["longitude"] = *body.Longitude
	}
	width, height := plan.Width, plan.Height
	if body.Width != nil {
		width = *body.Width
		updates["width"] = width
	}
	if body.Height != nil {
		height = *body.Height
		updates["height"] = height
	}
	if body.Width != nil || body.Height != nil {
		updates["area"] = width * height
	}
	if body.Status != nil {
		status := strings.TrimSpace(*body.Status)
		if !validRoutePlanStatus(status) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"status": []string{"invalid status"}}})
			return
		}
		updates["status"] = status
	}

	if errUpdate := h.db.WithContext(ctx).Model(&models.RoutePlan{}).
		Where("id = ?", id).Updates(updates).Error; errUpdate != nil {
		log.WithError(errUpdate).Error("update route plan failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "route plan updated"})
}

// Delete removes a route plan.
func (h *RoutePlanHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Scopes(authz.ScopeByStates(GetPrincipal(c))).
		Where("id = ?", id).
		Delete(&models.RoutePlan{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "route plan deleted"})
}

// Export streams the visible route plans as CSV.
func (h *RoutePlanHandler) Export(c *gin.Context) {
	var rows []models.RoutePlan
	if errFind := h.routePlanListQuery(c).Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="route_plans.csv"`)
	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"id", "state", "district", "sub_depot", "village", "wall_code", "latitude", "longitude", "width", "height", "area", "status", "created_at"})
	for _, row := range rows {
		_ = writer.Write([]string{
			strconv.FormatUint(row.ID, 10),
			row.State,
			row.District,
			row.SubDepot,
			row.Village,
			row.WallCode,
			strconv.FormatFloat(row.Latitude, 'f', -1, 64),
			strconv.FormatFloat(row.Longitude, 'f', -1, 64),
			strconv.FormatFloat(row.Width, 'f', -1, 64),
			strconv.FormatFloat(row.Height, 'f', -1, 64),
			strconv.FormatFloat(row.Area, 'f', -1, 64),
			row.Status,
			row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writer.Flush()
}

// routePlanBody serializes a route plan for responses.
func routePlanBody(plan *models.RoutePlan) gin.H {
	return gin.H{
		"id":         plan.ID,
		"state":      plan.State,
		"district":   plan.District,
		"sub_depot":  plan.SubDepot,
		"village":    plan.Village,
		"wall_code":  plan.WallCode,
		"latitude":   plan.Latitude,
		"longitude":  plan.Longitude,
		"width":      plan.Width,
		"height":     plan.Height,
		"area":       plan.Area,
		"status":     plan.Status,
		"created_at": plan.CreatedAt,
		"updated_at": plan.UpdatedAt,
	}
}
