package app

import (
	"net/http"
	"time"

	"github.com/creatorlink/core/internal/middleware"
	"github.com/creatorlink/core/internal/modules/auth"
	"github.com/creatorlink/core/internal/modules/social"
	"github.com/creatorlink/core/internal/modules/user"
	"github.com/creatorlink/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes() {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	authMW := middleware.HybridAuth(a.sessions, a.logger)

	// The general limiter covers every API route; auth endpoints get a
	// second, stricter bucket on top of it.
	generalRateMW := middleware.RateLimit(a.redis, a.logger, middleware.RateLimitConfig{
		Scope:  "general",
		Window: time.Duration(a.cfg.RateLimit.WindowSeconds) * time.Second,
		Max:    a.cfg.RateLimit.Max,
	})
	authRateMW := middleware.RateLimit(a.redis, a.logger, middleware.RateLimitConfig{
		Scope:  "auth",
		Window: time.Duration(a.cfg.RateLimit.AuthWindowSeconds) * time.Second,
		Max:    a.cfg.RateLimit.AuthMax,
	})

	api := r.Group(apiPrefix)
	api.Use(generalRateMW)
	api.Use(middleware.Idempotence(a.redis))

	api.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": "pong"})
	})
	api.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		redisOK := a.redis.Raw().Ping(c.Request.Context()).Err() == nil
		if !redisOK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"redis": redisOK})
	})

	authSvc := auth.NewService(a.db, a.sessions)
	auth.NewHandler(authSvc).RegisterRoutes(api, authRateMW, authMW)

	cacheMW := middleware.ResponseCache(a.redis, 15*time.Second)
	user.NewHandler(a.db).RegisterRoutes(api, authMW, cacheMW)

	socialSvc := social.NewService(a.db, a.redis, a.enc)
	social.NewHandler(socialSvc).RegisterRoutes(api, authMW)
}
