package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/creatorlink/core/internal/pkg/kv"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotenceRouter(store kv.Store) *gin.Engine {
	r := gin.New()
	r.POST("/action", Idempotence(store), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"done": true})
	})
	r.POST("/api/v1/auth/login", Idempotence(store), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"done": true})
	})
	return r
}

func postWithKey(r *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"x":1}`))
	if key != "" {
		req.Header.Set(idempotenceHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotenceRejectsReplay(t *testing.T) {
	r := newIdempotenceRouter(kv.NewMemory())

	first := postWithKey(r, "/action", "abc123")
	require.Equal(t, http.StatusOK, first.Code)

	second := postWithKey(r, "/action", "abc123")
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestIdempotenceDistinctKeysPass(t *testing.T) {
	r := newIdempotenceRouter(kv.NewMemory())

	assert.Equal(t, http.StatusOK, postWithKey(r, "/action", "key-1").Code)
	assert.Equal(t, http.StatusOK, postWithKey(r, "/action", "key-2").Code)
}

func TestIdempotenceFingerprintsWithoutHeader(t *testing.T) {
	r := newIdempotenceRouter(kv.NewMemory())

	first := postWithKey(r, "/action", "")
	require.Equal(t, http.StatusOK, first.Code)

	// Identical request body and client: rejected as a replay.
	second := postWithKey(r, "/action", "")
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestIdempotenceSkipsLogin(t *testing.T) {
	r := newIdempotenceRouter(kv.NewMemory())

	for i := 0; i < 3; i++ {
		w := postWithKey(r, "/api/v1/auth/login", "same-key-every-time")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestIdempotenceFailedRequestsAreRetryable(t *testing.T) {
	store := kv.NewMemory()
	calls := 0
	r := gin.New()
	r.POST("/flaky", Idempotence(store), func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.JSON(http.StatusBadGateway, gin.H{"ok": 0})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": 1})
	})

	first := postWithKey(r, "/flaky", "retry-me")
	require.Equal(t, http.StatusBadGateway, first.Code)

	second := postWithKey(r, "/flaky", "retry-me")
	assert.Equal(t, http.StatusOK, second.Code)
}
