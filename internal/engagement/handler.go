package engagement

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/listening-room-system/internal/auth"
	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func respondError(c *gin.Context, err error) {
	c.JSON(errs.HTTPStatus(err), gin.H{"error": err.Error()})
}

func (h *Handler) Like(c *gin.Context) {
	result, err := h.service.Like(c.Request.Context(), c.Param("roomId"), c.Param("itemId"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Dislike(c *gin.Context) {
	result, err := h.service.Dislike(c.Request.Context(), c.Param("roomId"), c.Param("itemId"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Clear(c *gin.Context) {
	result, err := h.service.Clear(c.Request.Context(), c.Param("roomId"), c.Param("itemId"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type setRequest struct {
	Direction models.Direction `json:"direction" binding:"required"`
}

func (h *Handler) Set(c *gin.Context) {
	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction is required"})
		return
	}

	result, err := h.service.SetEngagement(c.Request.Context(), c.Param("roomId"), c.Param("itemId"), auth.UserID(c), req.Direction)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Counts(c *gin.Context) {
	result, err := h.service.Counts(c.Request.Context(), c.Param("roomId"), c.Param("itemId"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.UserStats(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
