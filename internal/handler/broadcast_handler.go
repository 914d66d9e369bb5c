package handler

import (
	"net/http"

	"enchiridion/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BroadcastHandler struct {
	svc *service.BroadcastService
	log *zap.Logger
}

func NewBroadcastHandler(svc *service.BroadcastService, log *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{svc: svc, log: log.Named("broadcast")}
}

type BroadcastRequest struct {
	Type    string `json:"type"`
	Message string `json:"message" binding:"required"`
	RefCode string `json:"refCode"`
}

func (h *BroadcastHandler) List(c *gin.Context) {
	list, err := h.svc.Recent(c.Request.Context(), queryLimit(c, 10, 100))
	if err != nil {
		respondError(c, h.log, err, "failed to load broadcasts")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BroadcastHandler) Create(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	n, err := h.svc.Create(c.Request.Context(), req.Type, req.Message, req.RefCode)
	if err != nil {
		respondError(c, h.log, err, "failed to create broadcast")
		return
	}
	c.JSON(http.StatusCreated, n)
}
