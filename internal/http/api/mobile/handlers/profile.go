package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProfileHandler serves the promoter's own data in the field app.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// Profile returns the authenticated promoter's account details.
func (h *ProfileHandler) Profile(c *gin.Context) {
	promoter := GetPromoter(c)
	if promoter == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": promoterBody(promoter)})
}

// RoutePlans returns the active route plans in the promoter's own state,
// optionally narrowed to their district.
func (h *ProfileHandler) RoutePlans(c *gin.Context) {
	promoter := GetPromoter(c)
	if promoter == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthenticated"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).
		Where("state = ?", promoter.State).
		Where("status = ?", models.RoutePlanStatusActive)
	if strings.TrimSpace(c.Query("district")) != "" {
		q = q.Where("district = ?", strings.TrimSpace(c.Query("district")))
	} else if promoter.District != "" {
		q = q.Where("district = ?", promoter.District)
	}

	var rows []models.RoutePlan
	if errFind := q.Order("village ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "list route plans failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":        row.ID,
			"state":     row.State,
			"district":  row.District,
			"sub_depot": row.SubDepot,
			"village":   row.Village,
			"wall_code": row.WallCode,
			"latitude":  row.Latitude,
			"longitude": row.Longitude,
			"width":     row.Width,
			"height":    row.Height,
			"area":      row.Area,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

// submitRecceRequest defines the site-visit submission body.
type submitRecceRequest struct {
	RoutePlanID *uint64  `json:"route_plan_id"`
	Village     string   `json:"village"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	CloseShot   string   `json:"close_shot"`
	LongShot    string   `json:"long_shot"`
	Photos      []string `json:"photos"`
	Remarks     string   `json:"remarks"`
	VisitDate   string   `json:"visit_date"`
}

// SubmitRecce records a site visit. State and district come from the
// promoter's account, not the request, so a submission can never land
// outside the promoter's own scope.
func (h *ProfileHandler) SubmitRecce(c *gin.Context) {
	promoter := GetPromoter(c)
	if promoter == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthenticated"})
		return
	}

	var body submitRecceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	fieldErrors := gin.H{}
	if body.Latitude == 0 && body.Longitude == 0 {
		fieldErrors["location"] = []string{"latitude and longitude are required"}
	}
	if strings.TrimSpace(body.CloseShot) == "" {
		fieldErrors["close_shot"] = []string{"close shot photo is required"}
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": fieldErrors})
		return
	}

	ctx := c.Request.Context()
	if body.RoutePlanID != nil {
		var count int64
		errCount := h.db.WithContext(ctx).Model(&models.RoutePlan{}).
			Where("id = ? AND state = ?", *body.RoutePlanID, promoter.State).
			Count(&count).Error
		if errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "submit failed"})
			return
		}
		if count == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"route_plan_id": []string{"unknown route plan"}}})
			return
		}
	}

	photos := body.Photos
	if photos == nil {
		photos = []string{}
	}
	photosJSON, errMarshal := json.Marshal(photos)
	if errMarshal != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"photos": []string{"invalid photos"}}})
		return
	}

	recce := models.ActivityRecce{
		PromoterID:  promoter.ID,
		RoutePlanID: body.RoutePlanID,
		State:       promoter.State,
		District:    promoter.District,
		Village:     strings.TrimSpace(body.Village),
		Latitude:    body.Latitude,
		Longitude:   body.Longitude,
		CloseShot:   strings.TrimSpace(body.CloseShot),
		LongShot:    strings.TrimSpace(body.LongShot),
		Photos:      datatypes.JSON(photosJSON),
		Remarks:     strings.TrimSpace(body.Remarks),
		Status:      models.ActivityRecceStatusPending,
	}
	if raw := strings.TrimSpace(body.VisitDate); raw != "" {
		if visitDate, errParse := time.Parse("2006-01-02", raw); errParse == nil {
			recce.VisitDate = &visitDate
		} else {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"visit_date": []string{"invalid date, expected YYYY-MM-DD"}}})
			return
		}
	}

	if errCreate := h.db.WithContext(ctx).Create(&recce).Error; errCreate != nil {
		log.WithError(errCreate).Error("submit recce failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "submit failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "recce submitted", "data": gin.H{
		"id":     recce.ID,
		"status": recce.Status,
	}})
}
