package admin

import (
	"net/http"
	"strings"

	"github.com/fieldwave/promoter-backoffice/internal/authz"
	"github.com/fieldwave/promoter-backoffice/internal/config"
	handlers "github.com/fieldwave/promoter-backoffice/internal/http/api/admin/handlers"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/fieldwave/promoter-backoffice/internal/security"
	"github.com/fieldwave/promoter-backoffice/internal/statecache"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, conn *gorm.DB, jwtCfg config.JWTConfig, states *statecache.Cache) {
	if r == nil || conn == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(conn)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(conn, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)
	adminGroup.POST("/login/totp", authHandler.LoginTOTP)

	selfAuthed := adminGroup.Group("")
	selfAuthed.Use(adminAuthMiddleware(conn, jwtCfg))

	mfaHandler := handlers.NewMFAHandler(conn)
	selfAuthed.GET("/mfa/status", mfaHandler.Status)
	selfAuthed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	selfAuthed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	selfAuthed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(conn, jwtCfg))
	authed.Use(adminPermissionMiddleware())

	userHandler := handlers.NewUserHandler(conn)
	authed.POST("/users", userHandler.Create)
	authed.GET("/users", userHandler.List)
	authed.GET("/users/:id", userHandler.Get)
	authed.PUT("/users/:id", userHandler.Update)
	authed.DELETE("/users/:id", userHandler.Delete)
	authed.POST("/users/:id/disable", userHandler.Disable)
	authed.POST("/users/:id/enable", userHandler.Enable)
	authed.PUT("/users/:id/password", userHandler.ChangePassword)

	userStateHandler := handlers.NewUserStateHandler(conn)
	authed.GET("/users/:id/states", userStateHandler.List)
	authed.POST("/users/:id/states", userStateHandler.Assign)
	authed.DELETE("/users/:id/states", userStateHandler.Remove)

	roleHandler := handlers.NewRoleHandler(conn)
	authed.POST("/roles", roleHandler.Create)
	authed.GET("/roles", roleHandler.List)
	authed.GET("/roles/:id", roleHandler.Get)
	authed.PUT("/roles/:id", roleHandler.Update)
	authed.DELETE("/roles/:id", roleHandler.Delete)
	authed.GET("/permissions", roleHandler.ListPermissions)

	promoterHandler := handlers.NewPromoterHandler(conn)
	authed.POST("/promoters", promoterHandler.Create)
	authed.GET("/promoters", promoterHandler.List)
	authed.GET("/promoters/export", promoterHandler.Export)
	authed.GET("/promoters/:id", promoterHandler.Get)
	authed.PUT("/promoters/:id", promoterHandler.Update)
	authed.DELETE("/promoters/:id", promoterHandler.Delete)
	authed.POST("/promoters/bulk-delete", promoterHandler.BulkDelete)
	authed.POST("/promoters/bulk-status", promoterHandler.BulkStatus)
	authed.POST("/promoters/:id/reset-device", promoterHandler.ResetDevice)

	routePlanHandler := handlers.NewRoutePlanHandler(conn)
	authed.POST("/route-plans", routePlanHandler.Create)
	authed.GET("/route-plans", routePlanHandler.List)
	authed.GET("/route-plans/export", routePlanHandler.Export)
	authed.GET("/route-plans/:id", routePlanHandler.Get)
	authed.PUT("/route-plans/:id", routePlanHandler.Update)
	authed.DELETE("/route-plans/:id", routePlanHandler.Delete)

	recceHandler := handlers.NewActivityRecceHandler(conn)
	authed.GET("/activity-recces", recceHandler.List)
	authed.GET("/activity-recces/export", recceHandler.Export)
	authed.GET("/activity-recces/:id", recceHandler.Get)
	authed.PUT("/activity-recces/:id", recceHandler.Update)
	authed.DELETE("/activity-recces/:id", recceHandler.Delete)
	authed.POST("/activity-recces/bulk-delete", recceHandler.BulkDelete)
	authed.POST("/activity-recces/bulk-status", recceHandler.BulkStatus)

	stateHandler := handlers.NewStateHandler(conn, states)
	authed.GET("/states/available", stateHandler.Available)
}

// adminAuthMiddleware validates admin JWTs and resolves the principal once
// per request.
func adminAuthMiddleware(conn *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}

		var user models.User
		if errFind := conn.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "account deactivated"})
			return
		}

		principal, errPrincipal := authz.LoadPrincipal(c.Request.Context(), conn, &user)
		if errPrincipal != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "authorization lookup failed"})
			return
		}
		c.Set(handlers.ContextPrincipal, principal)
		c.Set(handlers.ContextUserID, user.ID)
		c.Next()
	}
}

// adminPermissionMiddleware gates each route by its permission definition.
// Routes without a definition pass through; every authed route below is
// expected to carry one.
func adminPermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		required, gated := authz.RequiredPermission(c.Request.Method, c.FullPath())
		if !gated {
			c.Next()
			return
		}
		principal := handlers.GetPrincipal(c)
		if principal == nil || !principal.Has(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "You do not have permission to perform this action"})
			return
		}
		c.Next()
	}
}
