package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/creatorlink/core/internal/pkg/kv"
	"github.com/gin-gonic/gin"
)

const (
	responseCachePrefix = "api_cache:"
	defaultCacheTTL     = 15 * time.Second
	defaultCacheMaxBody = 1 << 20 // 1 MiB
	headerResponseCache = "X-Cache"
	responseCacheHit    = "hit"
	responseCacheMiss   = "miss"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	BodyBase64  string `json:"body_base64"`
}

type cacheBodyWriter struct {
	gin.ResponseWriter
	body     []byte
	maxBytes int
	overflow bool
}

func (w *cacheBodyWriter) Write(data []byte) (int, error) {
	w.capture(data)
	return w.ResponseWriter.Write(data)
}

func (w *cacheBodyWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *cacheBodyWriter) capture(data []byte) {
	if w.overflow || len(data) == 0 {
		return
	}
	remaining := w.maxBytes - len(w.body)
	if remaining <= 0 {
		w.overflow = true
		return
	}
	if len(data) > remaining {
		w.body = append(w.body, data[:remaining]...)
		w.overflow = true
		return
	}
	w.body = append(w.body, data...)
}

// ResponseCache serves anonymous GET responses from the KV store for a short
// TTL. Authenticated requests always pass through. Store failures degrade to
// uncached responses.
func ResponseCache(store kv.Store, ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || IsAuthenticated(c) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := responseCachePrefix + c.Request.URL.RequestURI()

		if raw, err := store.Get(ctx, cacheKey); err == nil && raw != "" {
			var payload cachedResponse
			if json.Unmarshal([]byte(raw), &payload) == nil {
				if body, err := base64.StdEncoding.DecodeString(payload.BodyBase64); err == nil {
					if payload.ContentType == "" {
						payload.ContentType = "application/json; charset=utf-8"
					}
					c.Header(headerResponseCache, responseCacheHit)
					c.Data(payload.Status, payload.ContentType, body)
					c.Abort()
					return
				}
			}
		}

		buffer := &cacheBodyWriter{ResponseWriter: c.Writer, maxBytes: defaultCacheMaxBody}
		c.Writer = buffer
		c.Header(headerResponseCache, responseCacheMiss)
		c.Next()

		if c.Writer.Status() != http.StatusOK || buffer.overflow || len(buffer.body) == 0 {
			return
		}

		payload := cachedResponse{
			Status:      http.StatusOK,
			ContentType: c.Writer.Header().Get("Content-Type"),
			BodyBase64:  base64.StdEncoding.EncodeToString(buffer.body),
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return
		}
		_ = store.Set(ctx, cacheKey, string(raw), ttl)
	}
}
