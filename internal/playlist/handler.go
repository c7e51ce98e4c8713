package playlist

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

func (h *Handler) Enqueue(c *gin.Context) {
	var track models.Track
	if err := c.ShouldBindJSON(&track); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid track payload"})
		return
	}

	result, err := h.service.Enqueue(c.Request.Context(), c.Param("roomId"), auth.UserID(c), track)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetPlaylist(c *gin.Context) {
	entries, err := h.service.GetPlaylist(c.Request.Context(), c.Param("roomId"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlist": entries})
}
