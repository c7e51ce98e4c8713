package playback

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/listening-room-system/pkg/errs"
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

func (h *Handler) StartNext(c *gin.Context) {
	result, err := h.service.StartNext(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) StartSpecific(c *gin.Context) {
	result, err := h.service.StartSpecific(c.Request.Context(), c.Param("roomId"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Skip(c *gin.Context) {
	result, err := h.service.Skip(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Stop(c *gin.Context) {
	if err := h.service.Stop(c.Request.Context(), c.Param("roomId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

func (h *Handler) GetState(c *gin.Context) {
	state, err := h.service.GetState(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
