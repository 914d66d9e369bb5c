package handler

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"enchiridion/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type PaystackWebhookHandler struct {
	svc    *service.PaymentService
	secret string
	log    *zap.Logger
}

func NewPaystackWebhookHandler(svc *service.PaymentService, secret string, log *zap.Logger) *PaystackWebhookHandler {
	return &PaystackWebhookHandler{svc: svc, secret: secret, log: log.Named("paystack")}
}

// Handle verifies the x-paystack-signature header against the raw body and
// queues the purchase. Paystack only needs a 200; duplicates answer the same way.
func (h *PaystackWebhookHandler) Handle(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not configured"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !h.verifySignature(body, c.GetHeader("x-paystack-signature")) {
		h.log.Warn("rejected webhook signature", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var evt service.PaystackEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	queued, err := h.svc.HandleEvent(c.Request.Context(), &evt)
	if err != nil {
		respondError(c, h.log, err, "webhook processing failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "queued": queued})
}

func (h *PaystackWebhookHandler) verifySignature(body []byte, sig string) bool {
	if sig == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}
