// Package user exposes the profile endpoints for the authenticated account.
package user

import (
	"errors"

	"github.com/creatorlink/core/internal/middleware"
	"github.com/creatorlink/core/internal/models"
	"github.com/creatorlink/core/internal/pkg/pagination"
	"github.com/creatorlink/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UpdateDTO struct {
	Name   *string `json:"name"`
	Bio    *string `json:"bio"`
	Avatar *string `json:"avatar"`
}

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, cacheMW gin.HandlerFunc) {
	u := rg.Group("/user", authMW)
	u.GET("", h.profile)
	u.PATCH("", h.update)

	// Public creator directory, served from the short-TTL response cache.
	rg.GET("/creators", cacheMW, h.creators)
}

type creatorSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Bio    string `json:"bio,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

func (h *Handler) creators(c *gin.Context) {
	q := pagination.FromContext(c)

	var users []models.UserModel
	query := h.db.Model(&models.UserModel{}).
		Where("role = ?", models.RoleCreator).
		Order("created_at DESC")
	meta, err := pagination.Paginate(query, q, &users)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	items := make([]creatorSummary, len(users))
	for i, u := range users {
		items[i] = creatorSummary{ID: u.ID, Name: u.Name, Bio: u.Bio, Avatar: u.Avatar}
	}
	response.Paginated(c, items, meta)
}

func (h *Handler) profile(c *gin.Context) {
	var u models.UserModel
	if err := h.db.Where("id = ?", middleware.CurrentUserID(c)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, u)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if dto.Name != nil {
		updates["name"] = *dto.Name
	}
	if dto.Bio != nil {
		updates["bio"] = *dto.Bio
	}
	if dto.Avatar != nil {
		updates["avatar"] = *dto.Avatar
	}
	if len(updates) == 0 {
		response.BadRequest(c, "nothing to update")
		return
	}

	res := h.db.Model(&models.UserModel{}).
		Where("id = ?", middleware.CurrentUserID(c)).
		Updates(updates)
	if res.Error != nil {
		response.InternalError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		response.NotFound(c)
		return
	}

	var u models.UserModel
	if err := h.db.Where("id = ?", middleware.CurrentUserID(c)).First(&u).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, u)
}
