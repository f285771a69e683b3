package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldwave/promoter-backoffice/internal/config"
	"github.com/fieldwave/promoter-backoffice/internal/db"
	adminapi "github.com/fieldwave/promoter-backoffice/internal/http/api/admin"
	mobileapi "github.com/fieldwave/promoter-backoffice/internal/http/api/mobile"
	"github.com/fieldwave/promoter-backoffice/internal/ratelimit"
	"github.com/fieldwave/promoter-backoffice/internal/statecache"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the back-office and field app API server.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	redisConfig := config.LoadRedisConfig(configPath)
	bootstrapConfig := config.LoadBootstrapConfig(configPath)

	if errBootstrap := EnsureBootstrapAdmin(conn, bootstrapConfig); errBootstrap != nil {
		return errBootstrap
	}

	limits := ratelimit.NewManager(redisConfig, nil, nil)
	states := statecache.New(redisConfig, 0)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogMiddleware())

	adminapi.RegisterAdminRoutes(engine, conn, jwtConfig, states)
	mobileapi.RegisterMobileRoutes(engine, conn, limits)

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting server on %s with config=%s", addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && errListen != http.ErrServerClosed {
		return errListen
	}
	return nil
}

// requestLogMiddleware logs each request with method, path, status, and latency.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		}).Info("request")
	}
}
