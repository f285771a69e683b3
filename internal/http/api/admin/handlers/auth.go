package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fieldwave/promoter-backoffice/internal/config"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/fieldwave/promoter-backoffice/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler serves back-office login endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest defines the request body for admin login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// Login authenticates a back-office user. Accounts with TOTP enabled must
// finish via the TOTP endpoint.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}

	user, status, message := h.checkCredentials(c, body.Username, body.Password)
	if user == nil {
		c.JSON(status, gin.H{"success": false, "message": message})
		return
	}

	if strings.TrimSpace(user.TOTPSecret) != "" {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"mfa_required": true}})
		return
	}
	h.issueToken(c, user)
}

// LoginTOTP authenticates a back-office user with an MFA code.
func (h *AuthHandler) LoginTOTP(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}

	user, status, message := h.checkCredentials(c, body.Username, body.Password)
	if user == nil {
		c.JSON(status, gin.H{"success": false, "message": message})
		return
	}
	if strings.TrimSpace(user.TOTPSecret) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "MFA is not enabled for this account"})
		return
	}
	if !security.ValidateTOTP(user.TOTPSecret, body.Code) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid credentials"})
		return
	}
	h.issueToken(c, user)
}

// checkCredentials resolves and verifies a user. On failure the returned user
// is nil; the message never reveals which of username/password was wrong.
func (h *AuthHandler) checkCredentials(c *gin.Context, username, password string) (*models.User, int, string) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return nil, http.StatusUnauthorized, "invalid credentials"
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&user).Error
	if errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithError(errFind).Error("admin login lookup failed")
		}
		return nil, http.StatusUnauthorized, "invalid credentials"
	}
	if !security.CheckPassword(user.Password, password) {
		return nil, http.StatusUnauthorized, "invalid credentials"
	}
	if !user.Active {
		return nil, http.StatusForbidden, "account deactivated"
	}
	return &user, 0, ""
}

// issueToken signs and returns a JWT for the user.
func (h *AuthHandler) issueToken(c *gin.Context, user *models.User) {
	token, errIssue := security.IssueAdminToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, user.ID, user.Username)
	if errIssue != nil {
		log.WithError(errIssue).Error("admin token issue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"token": token,
			"user": gin.H{
				"id":       user.ID,
				"username": user.Username,
				"name":     user.Name,
				"email":    user.Email,
			},
		},
	})
}

// MFAHandler manages TOTP enrollment for the authenticated user.
type MFAHandler struct {
	db *gorm.DB
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{db: db}
}

// totpIssuer names the service in authenticator apps.
const totpIssuer = "Promoter Backoffice"

// Status reports whether TOTP is enabled for the caller.
func (h *MFAHandler) Status(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"totp_enabled": strings.TrimSpace(user.TOTPSecret) != ""}})
}

// PrepareTOTP generates a TOTP secret for enrollment. Nothing is persisted
// until the code is confirmed.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if strings.TrimSpace(user.TOTPSecret) != "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "MFA already enabled"})
		return
	}
	key, errGen := security.NewTOTPKey(totpIssuer, user.Username)
	if errGen != nil {
		log.WithError(errGen).Error("totp key generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "MFA setup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"secret": key.Secret(), "url": key.URL()}})
}

// confirmTOTPRequest defines the request body for TOTP confirmation.
type confirmTOTPRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

// ConfirmTOTP validates the first code and persists the secret.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	secret := strings.TrimSpace(body.Secret)
	if secret == "" || !security.ValidateTOTP(secret, body.Code) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid code"})
		return
	}
	errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("totp_secret", secret).Error
	if errUpdate != nil {
		log.WithError(errUpdate).Error("totp confirm failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "MFA setup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "MFA enabled"})
}

// disableTOTPRequest defines the request body for disabling TOTP.
type disableTOTPRequest struct {
	Code string `json:"code"`
}

// DisableTOTP removes the stored secret after validating a current code.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if strings.TrimSpace(user.TOTPSecret) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "MFA is not enabled"})
		return
	}
	var body disableTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": gin.H{"body": []string{"invalid json"}}})
		return
	}
	if !security.ValidateTOTP(user.TOTPSecret, body.Code) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid code"})
		return
	}
	errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("totp_secret", "").Error
	if errUpdate != nil {
		log.WithError(errUpdate).Error("totp disable failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "MFA disable failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "MFA disabled"})
}

// currentUser loads the authenticated user from context.
func (h *MFAHandler) currentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextUserID)
	userID, okCast := value.(uint64)
	if !exists || !okCast || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
		return nil, false
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
		return nil, false
	}
	return &user, true
}
