package handler

import (
	"errors"
	"net/http"

	"enchiridion/internal/logging"
	"enchiridion/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps service errors to HTTP status codes. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrPartnerNotFound),
		errors.Is(err, service.ErrReferrerNotFound),
		errors.Is(err, service.ErrReviewNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidTier),
		errors.Is(err, service.ErrNotEligible),
		errors.Is(err, service.ErrNoBalance),
		errors.Is(err, service.ErrNothingToRevert),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidPeriod),
		errors.Is(err, service.ErrUnpaid):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCreds), errors.Is(err, service.ErrInactive):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrCodeTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes a generic error body. Store failures are logged with
// detail and answered with fallback only.
func respondError(c *gin.Context, log *zap.Logger, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(fallback, zap.String("path", c.FullPath()), logging.Err(err))
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
