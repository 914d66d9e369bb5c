package handler

import (
	"net/http"
	"strconv"
	"strings"

	"enchiridion/internal/middleware"
	"enchiridion/internal/models"
	"enchiridion/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReferralHandler struct {
	referrals  *service.ReferralService
	milestones *service.MilestoneService
	reports    *service.ReportService
	payments   *service.PaymentService
	log        *zap.Logger
}

func NewReferralHandler(
	referrals *service.ReferralService,
	milestones *service.MilestoneService,
	reports *service.ReportService,
	payments *service.PaymentService,
	log *zap.Logger,
) *ReferralHandler {
	return &ReferralHandler{referrals: referrals, milestones: milestones, reports: reports, payments: payments, log: log.Named("referral")}
}

type VisitRequest struct {
	RefCode   string `json:"refCode" binding:"required"`
	VisitorID string `json:"visitorId"`
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
}

type ShareRequest struct {
	RefCode  string `json:"refCode"`
	Platform string `json:"platform"`
}

type ActivityRequest struct {
	Type    string `json:"type"`
	Details string `json:"details" binding:"required"`
}

type LeadRequest struct {
	Email   string `json:"email" binding:"required"`
	RefCode string `json:"refCode"`
	Source  string `json:"source"`
	Details string `json:"details"`
}

type DistributorLeadRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	WhatsApp string `json:"whatsapp"`
	Location string `json:"location"`
	RefCode  string `json:"refCode"`
}

type CreditPurchaseRequest struct {
	RefCode    string  `json:"refCode"`
	BuyerEmail string  `json:"buyerEmail"`
	Reference  string  `json:"reference"`
	Amount     float64 `json:"amount"`
}

type MilestoneRequest struct {
	RefCode   string `json:"refCode" binding:"required"`
	Threshold int    `json:"threshold" binding:"required"`
}

// clientIP is the connection address, resolved through the trusted proxies
// only. An IP reported in the body is logged but never trusted.
func (h *ReferralHandler) clientIP(c *gin.Context, reported string) string {
	ip := c.ClientIP()
	if reported = strings.TrimSpace(reported); reported != "" && reported != ip {
		h.log.Debug("reported ip differs from connection", zap.String("reported", reported), zap.String("ip", ip))
	}
	return ip
}

func (h *ReferralHandler) Stats(c *gin.Context) {
	stats, err := h.referrals.Stats(c.Request.Context(), middleware.GetEmail(c))
	if err != nil {
		respondError(c, h.log, err, "failed to load stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ReferralHandler) Progress(c *gin.Context) {
	ob, err := h.referrals.Progress(c.Request.Context(), middleware.GetEmail(c))
	if err != nil {
		respondError(c, h.log, err, "failed to load progress")
		return
	}
	c.JSON(http.StatusOK, ob)
}

func (h *ReferralHandler) UpdatePayout(c *gin.Context) {
	var req service.PayoutDetails
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.referrals.UpdatePayout(c.Request.Context(), middleware.GetEmail(c), req); err != nil {
		respondError(c, h.log, err, "failed to update payout details")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ReferralHandler) LogActivity(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	stats, err := h.referrals.Stats(ctx, middleware.GetEmail(c))
	if err != nil {
		respondError(c, h.log, err, "failed to log activity")
		return
	}
	if err := h.referrals.LogActivity(ctx, stats.ReferralCode, req.Type, req.Details); err != nil {
		respondError(c, h.log, err, "failed to log activity")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ReferralHandler) RecordVisit(c *gin.Context) {
	var req VisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.referrals.RecordVisit(c.Request.Context(), req.RefCode, strings.TrimSpace(req.VisitorID), h.clientIP(c, req.IP))
	if err != nil {
		respondError(c, h.log, err, "failed to record visit")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReferralHandler) TrackVisit(c *gin.Context) {
	var req VisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = c.Request.UserAgent()
	}
	if err := h.referrals.TrackVisit(c.Request.Context(), req.RefCode, h.clientIP(c, req.IP), userAgent); err != nil {
		respondError(c, h.log, err, "failed to track visit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RecordShare takes the platform from the query string, falling back to the body.
func (h *ReferralHandler) RecordShare(c *gin.Context) {
	var req ShareRequest
	_ = c.ShouldBindJSON(&req)
	code := c.DefaultQuery("refCode", req.RefCode)
	platform := c.DefaultQuery("platform", req.Platform)
	if code == "" || platform == "" {
		badRequest(c, "refCode and platform are required")
		return
	}
	res, err := h.referrals.RecordShare(c.Request.Context(), code, strings.ToLower(platform))
	if err != nil {
		respondError(c, h.log, err, "failed to record share")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReferralHandler) CaptureLead(c *gin.Context) {
	var req LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	source := req.Source
	if source == "" {
		source = "landing"
	}
	if err := h.referrals.CaptureLead(c.Request.Context(), req.Email, req.RefCode, source, req.Details); err != nil {
		respondError(c, h.log, err, "failed to capture lead")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ReferralHandler) SubscribeNewsletter(c *gin.Context) {
	var req LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.referrals.CaptureLead(c.Request.Context(), req.Email, req.RefCode, "newsletter", req.Details); err != nil {
		respondError(c, h.log, err, "failed to subscribe")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ReferralHandler) DistributorLead(c *gin.Context) {
	var req DistributorLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	lead := &models.DistributorLead{
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		WhatsApp:     strings.TrimSpace(req.WhatsApp),
		Location:     strings.TrimSpace(req.Location),
		ReferralCode: strings.TrimSpace(req.RefCode),
		SubmittedBy:  middleware.GetEmail(c),
	}
	res, err := h.referrals.DistributorLead(c.Request.Context(), lead, c.ClientIP())
	if err != nil {
		respondError(c, h.log, err, "failed to record distributor lead")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReferralHandler) CreditPurchase(c *gin.Context) {
	var req CreditPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if err := h.payments.VerifyReference(ctx, req.Reference); err != nil {
		respondError(c, h.log, err, "failed to verify payment reference")
		return
	}
	res, err := h.referrals.CreditPurchase(ctx, service.PurchaseRequest{
		ReferralCode: req.RefCode,
		BuyerEmail:   strings.ToLower(strings.TrimSpace(req.BuyerEmail)),
		Reference:    strings.TrimSpace(req.Reference),
		AmountNaira:  req.Amount,
	})
	if err != nil {
		respondError(c, h.log, err, "failed to credit purchase")
		return
	}
	c.JSON(http.StatusOK, res)
}

// ApplyMilestone lets a partner claim a tier on their own code. Superusers may claim for anyone.
func (h *ReferralHandler) ApplyMilestone(c *gin.Context) {
	var req MilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if !middleware.IsSuperuser(c) {
		own, err := h.referrals.Stats(ctx, middleware.GetEmail(c))
		if err != nil {
			respondError(c, h.log, err, "failed to apply milestone")
			return
		}
		if !strings.EqualFold(own.ReferralCode, strings.TrimSpace(req.RefCode)) {
			c.JSON(http.StatusForbidden, gin.H{"error": "can only claim milestones on your own code"})
			return
		}
	}
	res, err := h.milestones.ApplyTierBonus(ctx, strings.TrimSpace(req.RefCode), req.Threshold, middleware.GetEmail(c))
	if err != nil {
		respondError(c, h.log, err, "failed to apply milestone")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReferralHandler) Leaderboard(c *gin.Context) {
	entries, err := h.reports.Leaderboard(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "failed to load leaderboard")
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *ReferralHandler) RecentMilestones(c *gin.Context) {
	limit := queryLimit(c, 10, 50)
	list, err := h.milestones.RecentMilestones(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.log, err, "failed to load milestones")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ReferralHandler) Masters(c *gin.Context) {
	list, err := h.milestones.Masters(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "failed to load masters")
		return
	}
	c.JSON(http.StatusOK, list)
}

// queryLimit reads ?limit=, clamped to [1, max].
func queryLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
