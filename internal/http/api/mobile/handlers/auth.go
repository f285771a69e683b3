package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fieldwave/promoter-backoffice/internal/authz"
	dbutil "github.com/fieldwave/promoter-backoffice/internal/db"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/fieldwave/promoter-backoffice/internal/ratelimit"
	"github.com/fieldwave/promoter-backoffice/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// loginRateLimit bounds login attempts per username+IP per minute window.
// A successful login clears the counter.
const loginRateLimit = 5

// errLoginRejected carries a terminal login decision out of the
// binding transaction so it rolls back any partial state.
type errLoginRejected struct {
	status  int
	message string
}

func (e *errLoginRejected) Error() string { return e.message }

// AuthHandler implements promoter login and logout with device binding.
//
// A promoter account moves through three states: unbound (no device),
// bound and logged out, and bound and logged in. The first successful
// login binds the account to the presenting device; after that, only
// the bound device can log in until an admin resets the binding.
type AuthHandler struct {
	db     *gorm.DB
	limits *ratelimit.Manager
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, limits *ratelimit.Manager) *AuthHandler {
	return &AuthHandler{db: db, limits: limits}
}

// loginRequest defines the mobile login request body.
type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DeviceID    string `json:"device_id"`
	DeviceToken string `json:"device_token"`
	AppVersion  string `json:"app_version"`
}

// Login authenticates a promoter and enforces the device binding rules.
// The whole decision runs inside one transaction with the promoter row
// locked, so two racing logins from different devices cannot both bind.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	username := strings.TrimSpace(body.Username)
	password := strings.TrimSpace(body.Password)
	deviceID := strings.TrimSpace(body.DeviceID)

	fieldErrors := gin.H{}
	if username == "" {
		fieldErrors["username"] = []string{"username is required"}
	}
	if password == "" {
		fieldErrors["password"] = []string{"password is required"}
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": fieldErrors})
		return
	}

	ctx := c.Request.Context()
	limitKey := "mobile-login:" + username + ":" + c.ClientIP()
	if result, errLimit := h.limits.Allow(ctx, limitKey, loginRateLimit); errLimit == nil && !result.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many login attempts. Please try again later."})
		return
	}

	var (
		promoter models.Promoter
		token    string
	)
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// SQLite serializes write transactions on its own; the row lock
		// is needed on Postgres to keep two devices from both binding.
		if !dbutil.IsSQLite(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if errFind := q.Where("username = ?", username).First(&promoter).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return &errLoginRejected{status: http.StatusUnauthorized, message: "invalid credentials"}
			}
			return errFind
		}
		if !security.CheckPassword(promoter.Password, password) {
			return &errLoginRejected{status: http.StatusUnauthorized, message: "invalid credentials"}
		}
		if !promoter.IsActive || promoter.Status != models.PromoterStatusActive {
			return &errLoginRejected{status: http.StatusForbidden, message: "Account is deactivated. Please contact admin."}
		}

		// device_id is optional. An empty one never conflicts with an
		// existing binding and never overwrites one.
		otherDevice := deviceID != "" && promoter.DeviceID != nil && *promoter.DeviceID != deviceID
		if promoter.IsLoggedIn {
			if otherDevice {
				return &errLoginRejected{status: http.StatusForbidden, message: "User already logged in on another device"}
			}
			return &errLoginRejected{status: http.StatusForbidden, message: "User already loggedin"}
		}
		if otherDevice {
			return &errLoginRejected{status: http.StatusForbidden, message: "This account is already bound to another device. Please contact admin to reset device binding."}
		}

		newToken, tokenHash, errToken := security.NewPromoterToken()
		if errToken != nil {
			return errToken
		}
		token = newToken
		if errCreate := tx.Create(&models.PromoterToken{
			PromoterID: promoter.ID,
			TokenHash:  tokenHash,
		}).Error; errCreate != nil {
			return errCreate
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"is_logged_in": true,
			"last_active":  now,
			"updated_at":   now,
		}
		if deviceID != "" {
			updates["device_id"] = deviceID
		}
		if deviceToken := strings.TrimSpace(body.DeviceToken); deviceToken != "" {
			updates["device_token"] = deviceToken
		}
		if appVersion := strings.TrimSpace(body.AppVersion); appVersion != "" {
			updates["app_version"] = appVersion
		}
		if errUpdate := tx.Model(&models.Promoter{}).
			Where("id = ?", promoter.ID).
			Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		if deviceID != "" {
			promoter.DeviceID = &deviceID
		}
		promoter.IsLoggedIn = true
		return nil
	})
	if errTx != nil {
		var rejected *errLoginRejected
		if errors.As(errTx, &rejected) {
			c.JSON(rejected.status, gin.H{"success": false, "message": rejected.message})
			return
		}
		log.WithError(errTx).Error("mobile login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "login failed"})
		return
	}
	h.limits.Reset(ctx, limitKey)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "login successful",
		"data": gin.H{
			"promoter":          promoterBody(&promoter),
			"token":             token,
			"accessible_routes": []string{"/v0/app/profile", "/v0/app/route-plans", "/v0/app/activity-recces"},
			"permissions":       authz.PromoterAppPermissions,
		},
	})
}

// Logout ends the session. The device binding is kept so the promoter
// can log back in from the same device.
func (h *AuthHandler) Logout(c *gin.Context) {
	promoter := GetPromoter(c)
	if promoter == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthenticated"})
		return
	}
	tokenHash, _ := c.Get(ContextTokenHash)

	ctx := c.Request.Context()
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if hash, ok := tokenHash.(string); ok && hash != "" {
			if errDel := tx.Where("token_hash = ?", hash).Delete(&models.PromoterToken{}).Error; errDel != nil {
				return errDel
			}
		}
		return tx.Model(&models.Promoter{}).
			Where("id = ?", promoter.ID).
			Updates(map[string]any{"is_logged_in": false, "updated_at": time.Now().UTC()}).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("mobile logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
}
