package handler

import (
	"net/http"
	"strings"

	"enchiridion/internal/middleware"
	"enchiridion/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PayoutHandler struct {
	svc *service.PayoutService
	log *zap.Logger
}

func NewPayoutHandler(svc *service.PayoutService, log *zap.Logger) *PayoutHandler {
	return &PayoutHandler{svc: svc, log: log.Named("payout")}
}

// SettlementRequest identifies the partner by email, referral code or both.
type SettlementRequest struct {
	Email   string `json:"email"`
	RefCode string `json:"refCode"`
}

func (r *SettlementRequest) valid() bool {
	return strings.TrimSpace(r.Email) != "" || strings.TrimSpace(r.RefCode) != ""
}

func (h *PayoutHandler) MarkAsPaid(c *gin.Context) {
	var req SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		badRequest(c, "email or refCode is required")
		return
	}
	res, err := h.svc.MarkAsPaid(c.Request.Context(), req.Email, req.RefCode, middleware.GetEmail(c))
	if err != nil {
		respondError(c, h.log, err, "settlement failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PayoutHandler) Revert(c *gin.Context) {
	var req SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		badRequest(c, "email or refCode is required")
		return
	}
	res, err := h.svc.Revert(c.Request.Context(), req.Email, req.RefCode, middleware.GetEmail(c))
	if err != nil {
		respondError(c, h.log, err, "revert failed")
		return
	}
	c.JSON(http.StatusOK, res)
}
