package social

import (
	"errors"
	"time"

	"github.com/creatorlink/core/internal/middleware"
	"github.com/creatorlink/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// LinkDTO is the callback payload after the external token exchange.
type LinkDTO struct {
	State          string     `json:"state"         binding:"required"`
	ProviderUID    string     `json:"provider_uid"  binding:"required"`
	Username       string     `json:"username"`
	AccessToken    string     `json:"access_token"  binding:"required"`
	RefreshToken   string     `json:"refresh_token"`
	TokenExpiresAt *time.Time `json:"token_expires_at"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	s := rg.Group("/social", authMW)
	s.GET("", h.list)
	s.GET("/:provider/state", h.beginLink)
	s.POST("/:provider/link", h.completeLink)
	s.DELETE("/:provider", h.unlink)
}

func (h *Handler) list(c *gin.Context) {
	accounts, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, accounts)
}

func (h *Handler) beginLink(c *gin.Context) {
	state, err := h.svc.BeginLink(c.Request.Context(), middleware.CurrentUserID(c), c.Param("provider"))
	if err != nil {
		if errors.Is(err, errUnknownProvider) {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"state": state})
}

func (h *Handler) completeLink(c *gin.Context) {
	var dto LinkDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	account, err := h.svc.CompleteLink(c.Request.Context(), middleware.CurrentUserID(c), c.Param("provider"), &dto)
	if err != nil {
		switch {
		case errors.Is(err, errUnknownProvider):
			response.NotFoundMsg(c, err.Error())
		case errors.Is(err, errStateMismatch):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, account)
}

func (h *Handler) unlink(c *gin.Context) {
	err := h.svc.Unlink(c.Request.Context(), middleware.CurrentUserID(c), c.Param("provider"))
	if err != nil {
		if errors.Is(err, errNotLinked) {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
