// Package mobile exposes the field app API for promoters, a separate
// authentication realm from the back-office admin API.
package mobile

import (
	"net/http"
	"strings"
	"time"

	"github.com/fieldwave/promoter-backoffice/internal/http/api/mobile/handlers"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/fieldwave/promoter-backoffice/internal/ratelimit"
	"github.com/fieldwave/promoter-backoffice/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterMobileRoutes registers the promoter app routes and middleware.
func RegisterMobileRoutes(r *gin.Engine, conn *gorm.DB, limits *ratelimit.Manager) {
	if r == nil || conn == nil {
		return
	}

	appGroup := r.Group("/v0/app")

	authHandler := handlers.NewAuthHandler(conn, limits)
	appGroup.POST("/login", authHandler.Login)

	authed := appGroup.Group("")
	authed.Use(promoterAuthMiddleware(conn))
	authed.POST("/logout", authHandler.Logout)

	profileHandler := handlers.NewProfileHandler(conn)
	authed.GET("/profile", profileHandler.Profile)
	authed.GET("/route-plans", profileHandler.RoutePlans)
	authed.POST("/activity-recces", profileHandler.SubmitRecce)
}

// promoterAuthMiddleware resolves the promoter from an opaque bearer token.
// Only the token's SHA-256 digest is stored, so lookup is by digest.
func promoterAuthMiddleware(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || token == authHeader || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthenticated"})
			return
		}
		token = strings.TrimSpace(token)

		ctx := c.Request.Context()
		var record models.PromoterToken
		if errFind := conn.WithContext(ctx).
			Where("token_hash = ?", security.HashToken(token)).
			First(&record).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthenticated"})
			return
		}

		var promoter models.Promoter
		if errFind := conn.WithContext(ctx).First(&promoter, record.PromoterID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthenticated"})
			return
		}
		if !promoter.IsActive || promoter.Status != models.PromoterStatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Account is deactivated. Please contact admin."})
			return
		}

		now := time.Now().UTC()
		_ = conn.WithContext(ctx).Model(&models.PromoterToken{}).
			Where("id = ?", record.ID).
			Update("last_used_at", now).Error
		_ = conn.WithContext(ctx).Model(&models.Promoter{}).
			Where("id = ?", promoter.ID).
			Update("last_active", now).Error

		c.Set(handlers.ContextPromoter, &promoter)
		c.Set(handlers.ContextTokenHash, record.TokenHash)
		c.Next()
	}
}
