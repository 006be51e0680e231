package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/creatorlink/core/internal/pkg/kv"
	"github.com/gin-gonic/gin"
)

const (
	idempotenceHeader    = "X-Idempotence"
	idempotenceTTL       = 60 * time.Second
	idempotenceKeyPrefix = "idempotence:"
)

// Idempotence prevents duplicate non-GET requests from being replayed within
// a short window. Keyed on an explicit client header when present, otherwise
// on a fingerprint of the request. Store failures let the request through.
func Idempotence(store kv.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if shouldSkipIdempotence(c.Request.URL.Path) {
			c.Next()
			return
		}

		key, err := resolveIdempotenceKey(c)
		if err != nil || key == "" {
			c.Next()
			return
		}
		storeKey := idempotenceKeyPrefix + key

		ctx := c.Request.Context()
		val, err := store.Get(ctx, storeKey)
		if err != nil {
			c.Next()
			return
		}
		if val != "" {
			msg := "duplicate request, try again later"
			if val == "0" {
				msg = "identical request is still being processed"
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"ok":      0,
				"code":    http.StatusConflict,
				"message": msg,
			})
			return
		}

		if err := store.Set(ctx, storeKey, "0", idempotenceTTL); err != nil {
			c.Next()
			return
		}

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			_ = store.Set(ctx, storeKey, "1", idempotenceTTL)
		} else {
			_ = store.Del(ctx, storeKey)
		}
	}
}

// Login and registration are retried legitimately and already sit behind the
// stricter auth rate limit.
func shouldSkipIdempotence(path string) bool {
	p := strings.TrimRight(strings.ToLower(strings.TrimSpace(path)), "/")
	switch p {
	case "/api/v1/auth/login", "/api/v1/auth/register":
		return true
	default:
		return false
	}
}

func resolveIdempotenceKey(c *gin.Context) (string, error) {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return hdr, nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	ua := c.Request.UserAgent()
	ip := c.ClientIP()
	credential := c.GetHeader("Authorization")
	if credential == "" {
		credential = extractSessionID(c)
	}

	if len(body) == 0 && ua == "" && ip == "" && credential == "" {
		return "", nil
	}

	raw := c.Request.Method + "|" + c.Request.URL.String() + "|" + string(body) + "|" + ua + "|" + ip + "|" + credential
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:]), nil
}
