package auth

import (
	"errors"

	"github.com/creatorlink/core/internal/middleware"
	"github.com/creatorlink/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes binds the auth endpoints. rateMW is the stricter auth-scoped
// rate limiter; authMW is the hybrid guard.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, rateMW, authMW gin.HandlerFunc) {
	a := rg.Group("/auth", rateMW)

	a.POST("/login", h.login)
	a.POST("/register", h.register)
	a.POST("/sign-out", authMW, h.signOut)
	a.POST("/sign-out-all", authMW, h.signOutAll)
	a.GET("/session", authMW, h.currentSession)
	a.GET("/sessions", authMW, h.listSessions)
	a.DELETE("/sessions/:id", authMW, h.revokeSession)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Login(c.Request.Context(), dto.Email, dto.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, errUserNotFound) || errors.Is(err, errWrongPassword) {
			// Same answer for both failure modes.
			response.Unauthorized(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	h.setSessionCookie(c, result.Session.ID)
	response.OK(c, loginResponse{
		SessionID: result.Session.ID,
		Token:     result.Token,
		ExpiresAt: result.Session.CreatedAt.Add(h.svc.sessions.TTL()),
		User: userSummary{
			ID:    result.User.ID,
			Email: result.User.Email,
			Name:  result.User.Name,
			Role:  result.User.Role,
		},
	})
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Register(c.Request.Context(), &dto, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, errEmailTaken):
			response.Conflict(c, err.Error())
		case errors.Is(err, errInvalidRole):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}

	h.setSessionCookie(c, result.Session.ID)
	response.Created(c, loginResponse{
		SessionID: result.Session.ID,
		Token:     result.Token,
		ExpiresAt: result.Session.CreatedAt.Add(h.svc.sessions.TTL()),
		User: userSummary{
			ID:    result.User.ID,
			Email: result.User.Email,
			Name:  result.User.Name,
			Role:  result.User.Role,
		},
	})
}

// signOut destroys the current session. A bearer-only caller has nothing to
// destroy server-side; the cookie is cleared either way and the call succeeds.
func (h *Handler) signOut(c *gin.Context) {
	if sid := middleware.CurrentSessionID(c); sid != "" {
		if _, err := h.svc.sessions.Destroy(c.Request.Context(), sid); err != nil {
			response.InternalError(c, err)
			return
		}
	}
	h.clearSessionCookie(c)
	response.OK(c, gin.H{"success": true})
}

func (h *Handler) signOutAll(c *gin.Context) {
	count, err := h.svc.sessions.DestroyAll(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	h.clearSessionCookie(c)
	response.OK(c, gin.H{"success": true, "destroyed": count})
}

func (h *Handler) currentSession(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	response.OK(c, gin.H{
		"userId":    id.UserID,
		"email":     id.Email,
		"role":      id.Role,
		"tenantId":  id.TenantID,
		"sessionId": id.SessionID,
	})
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.svc.sessions.ListDetailed(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}

	current := middleware.CurrentSessionID(c)
	items := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		items[i] = sessionResponse{
			ID:             s.ID,
			CreatedAt:      s.CreatedAt,
			LastAccessedAt: s.LastAccessedAt,
			UserAgent:      s.UserAgent,
			IPAddress:      s.IPAddress,
			Current:        s.ID == current,
		}
	}
	response.OK(c, items)
}

func (h *Handler) revokeSession(c *gin.Context) {
	sessionID := c.Param("id")
	userID := middleware.CurrentUserID(c)

	// Only the owner may revoke; resolve through the user's own index.
	ids, err := h.svc.sessions.List(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	owned := false
	for _, id := range ids {
		if id == sessionID {
			owned = true
			break
		}
	}
	if !owned {
		response.NotFoundMsg(c, "session not found")
		return
	}

	destroyed, err := h.svc.sessions.Destroy(c.Request.Context(), sessionID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !destroyed {
		response.NotFoundMsg(c, "session not found")
		return
	}
	response.NoContent(c)
}

func (h *Handler) setSessionCookie(c *gin.Context, sessionID string) {
	maxAge := int(h.svc.sessions.TTL().Seconds())
	secure := c.Request.TLS != nil
	c.SetCookie(middleware.SessionCookie, sessionID, maxAge, "/", "", secure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	secure := c.Request.TLS != nil
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", secure, true)
}
