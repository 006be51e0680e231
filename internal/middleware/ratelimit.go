package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/creatorlink/core/internal/pkg/kv"
	"github.com/creatorlink/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitConfig describes one fixed-window counter class.
type RateLimitConfig struct {
	// Scope separates counter namespaces per route class ("general", "auth").
	Scope  string
	Window time.Duration
	Max    int64
}

// RateLimit enforces a fixed-window limit per client address backed by the KV
// store. The limiter fails open: a store outage must not block all traffic,
// unlike authentication which fails closed.
func RateLimit(store kv.Store, logger *zap.Logger, cfg RateLimitConfig) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", cfg.Scope, clientAddress(c))

		count, err := store.Incr(ctx, key)
		if err != nil {
			logger.Warn("rate limit store unavailable, allowing request",
				zap.String("scope", cfg.Scope), zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if _, err := store.Expire(ctx, key, cfg.Window); err != nil {
				logger.Warn("rate limit window init failed",
					zap.String("scope", cfg.Scope), zap.Error(err))
			}
		}

		ttl, err := store.TTL(ctx, key)
		if err != nil || ttl <= 0 {
			ttl = cfg.Window
		}

		remaining := cfg.Max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(cfg.Max, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if count > cfg.Max {
			retryAfter := int64(ttl / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.TooManyRequests(c, retryAfter)
			return
		}

		c.Next()
	}
}

// clientAddress resolves the client address, preferring the first hop of a
// forwarded-for chain, then the direct connection. It never crashes a request
// over an unresolvable address.
func clientAddress(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
