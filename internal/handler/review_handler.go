package handler

import (
	"net/http"

	"enchiridion/internal/models"
	"enchiridion/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReviewHandler struct {
	svc *service.ReviewService
	log *zap.Logger
}

func NewReviewHandler(svc *service.ReviewService, log *zap.Logger) *ReviewHandler {
	return &ReviewHandler{svc: svc, log: log.Named("review")}
}

type ReviewRequest struct {
	Name         string `json:"name" binding:"required"`
	JobTitle     string `json:"job_title"`
	Organization string `json:"organization"`
	Rating       int    `json:"rating" binding:"required,min=1,max=5"`
	Text         string `json:"text" binding:"required"`
}

type ModerateRequest struct {
	Status string `json:"status" binding:"required"`
}

// Approved is the public testimonial wall.
func (h *ReviewHandler) Approved(c *gin.Context) {
	list, err := h.svc.Approved(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "failed to load reviews")
		return
	}
	c.JSON(http.StatusOK, list)
}

// List is the moderation queue, optionally filtered by ?status=.
func (h *ReviewHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, h.log, err, "failed to load reviews")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ReviewHandler) Submit(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rv := &models.Review{
		Name:         req.Name,
		JobTitle:     req.JobTitle,
		Organization: req.Organization,
		Rating:       req.Rating,
		Text:         req.Text,
	}
	if err := h.svc.Submit(c.Request.Context(), rv); err != nil {
		respondError(c, h.log, err, "failed to submit review")
		return
	}
	c.JSON(http.StatusCreated, rv)
}

func (h *ReviewHandler) Moderate(c *gin.Context) {
	var req ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.Moderate(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		respondError(c, h.log, err, "failed to update review")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
