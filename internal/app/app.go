package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/creatorlink/core/internal/config"
	"github.com/creatorlink/core/internal/database"
	"github.com/creatorlink/core/internal/middleware"
	"github.com/creatorlink/core/internal/pkg/encryption"
	jwtpkg "github.com/creatorlink/core/internal/pkg/jwt"
	"github.com/creatorlink/core/internal/pkg/kv"
	sessionpkg "github.com/creatorlink/core/internal/pkg/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	redis    *kv.Redis
	sessions *sessionpkg.Store
	enc      *encryption.Service
	logger   *zap.Logger
}

// New initializes the application: config → DB → Redis → session store →
// routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	} else {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := kv.ConnectRedis(kv.RedisOptions{
		URL:             cfg.Redis.URL,
		Addr:            cfg.RedisAddr(),
		Username:        cfg.Redis.Username,
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		TLS:             cfg.Redis.TLS,
		MaxRetryBackoff: cfg.RedisMaxRetryBackoff(),
	})
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	sessions := sessionpkg.New(rc, logger, sessionpkg.Options{
		TTL:        cfg.SessionTTL(),
		MaxPerUser: cfg.Session.MaxPerUser,
	})

	enc, err := encryption.New(cfg.EncryptSecret, logger)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	app := &App{
		cfg:      cfg,
		router:   router,
		db:       db,
		redis:    rc,
		sessions: sessions,
		enc:      enc,
		logger:   logger,
	}
	app.registerRoutes()

	return app, nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderSessionID},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		c.AllowOriginFunc = func(origin string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown closes external connections.
func (a *App) Shutdown(ctx context.Context) error {
	return a.redis.Close()
}
