package middleware

import (
	"strings"

	"github.com/creatorlink/core/internal/pkg/jwt"
	"github.com/creatorlink/core/internal/pkg/response"
	sessionpkg "github.com/creatorlink/core/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// HeaderSessionID carries a session id; SessionCookie is the cookie
	// fallback for browser clients.
	HeaderSessionID = "X-Session-ID"
	SessionCookie   = "sessionId"

	contextKeyIdentity = "auth_identity"
)

// Identity is the request-scoped result of authentication. SessionID is empty
// when the request authenticated via the stateless token path.
type Identity struct {
	UserID    string
	Email     string
	Role      string
	TenantID  string
	SessionID string
}

// HybridAuth authenticates session-first with a bearer-token fallback. The
// session path is preferred because it carries server-revocable identity; the
// token path keeps pre-session clients working.
func HybridAuth(store *sessionpkg.Store, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if sid := extractSessionID(c); sid != "" {
			sess, err := store.Validate(c.Request.Context(), sid)
			if err == nil {
				setIdentity(c, &Identity{
					UserID:    sess.UserID,
					Email:     sess.Email,
					Role:      sess.Role,
					TenantID:  sess.TenantID,
					SessionID: sess.ID,
				})
				c.Next()
				return
			}
			// Fall through to the token path; do not reject yet.
			logger.Warn("session validation failed",
				zap.String("session", truncateID(sid)), zap.Error(err))
		}

		token := extractBearerToken(c)
		if token == "" {
			response.Unauthorized(c)
			return
		}

		claims, err := jwt.Parse(token)
		if err != nil {
			logger.Warn("token verification failed", zap.Error(err))
			response.Unauthorized(c)
			return
		}

		setIdentity(c, &Identity{
			UserID:   claims.UserID,
			Email:    claims.Email,
			Role:     claims.Role,
			TenantID: claims.TenantID,
		})
		c.Next()
	}
}

// SessionAuth is the strict session-only guard for routes that must honor
// server-side revocation; bearer tokens are not accepted.
func SessionAuth(store *sessionpkg.Store, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		sid := extractSessionID(c)
		if sid == "" {
			response.Unauthorized(c)
			return
		}
		sess, err := store.Validate(c.Request.Context(), sid)
		if err != nil {
			logger.Warn("session validation failed",
				zap.String("session", truncateID(sid)), zap.Error(err))
			response.Unauthorized(c)
			return
		}
		setIdentity(c, &Identity{
			UserID:    sess.UserID,
			Email:     sess.Email,
			Role:      sess.Role,
			TenantID:  sess.TenantID,
			SessionID: sess.ID,
		})
		c.Next()
	}
}

// CurrentIdentity extracts the authenticated identity from context, nil when
// the request did not pass a guard.
func CurrentIdentity(c *gin.Context) *Identity {
	v, _ := c.Get(contextKeyIdentity)
	id, _ := v.(*Identity)
	return id
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	if id := CurrentIdentity(c); id != nil {
		return id.UserID
	}
	return ""
}

// CurrentSessionID extracts the session ID, empty on the token path.
func CurrentSessionID(c *gin.Context) string {
	if id := CurrentIdentity(c); id != nil {
		return id.SessionID
	}
	return ""
}

// IsAuthenticated reports whether a guard populated an identity.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func setIdentity(c *gin.Context, id *Identity) {
	c.Set(contextKeyIdentity, id)
}

func extractSessionID(c *gin.Context) string {
	if sid := strings.TrimSpace(c.GetHeader(HeaderSessionID)); sid != "" {
		return sid
	}
	if raw, err := c.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(raw)
	}
	return ""
}

func extractBearerToken(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if auth == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// truncateID keeps a short non-sensitive prefix for logs.
func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "..."
}
