package service

import (
	"context"
	"errors"
	"strings"

	"enchiridion/internal/domain"
	"enchiridion/internal/models"
	"enchiridion/internal/repository"
)

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrInvalidStatus  = errors.New("invalid review status")
)

type ReviewService struct {
	reviews *repository.ReviewRepository
}

func NewReviewService(reviews *repository.ReviewRepository) *ReviewService {
	return &ReviewService{reviews: reviews}
}

// Submit stores a public testimonial as pending moderation.
func (s *ReviewService) Submit(ctx context.Context, rv *models.Review) error {
	rv.Name = strings.TrimSpace(rv.Name)
	rv.Text = strings.TrimSpace(rv.Text)
	if rv.Name == "" || rv.Text == "" || rv.Rating < 1 || rv.Rating > 5 {
		return ErrInvalidInput
	}
	return s.reviews.Create(ctx, rv)
}

func (s *ReviewService) Approved(ctx context.Context) ([]models.Review, error) {
	return s.reviews.List(ctx, domain.ReviewApproved)
}

func (s *ReviewService) List(ctx context.Context, status string) ([]models.Review, error) {
	if status != "" && !validReviewStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.reviews.List(ctx, status)
}

func (s *ReviewService) Moderate(ctx context.Context, id, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validReviewStatus(status) {
		return ErrInvalidStatus
	}
	err := s.reviews.SetStatus(ctx, id, status)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrReviewNotFound
	}
	return err
}

func validReviewStatus(status string) bool {
	switch status {
	case domain.ReviewPending, domain.ReviewApproved, domain.ReviewRejected:
		return true
	}
	return false
}
