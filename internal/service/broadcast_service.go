package service

import (
	"context"
	"strings"
	"time"

	"enchiridion/internal/domain"
	"enchiridion/internal/logging"
	"enchiridion/internal/models"
	"enchiridion/internal/repository"

	"go.uber.org/zap"
)

const maxBroadcastLength = 280

// BroadcastService publishes global announcements to the sheet, the live feed and FCM.
type BroadcastService struct {
	logs   *repository.LogRepository
	feed   FeedPublisher
	outbox Enqueuer
	log    *zap.Logger
}

func NewBroadcastService(logs *repository.LogRepository, feed FeedPublisher, outbox Enqueuer, log *zap.Logger) *BroadcastService {
	return &BroadcastService{logs: logs, feed: feed, outbox: outbox, log: log.Named("broadcast")}
}

func (s *BroadcastService) Create(ctx context.Context, kind, message, code string) (*models.GlobalNotification, error) {
	message = strings.TrimSpace(message)
	if message == "" || len(message) > maxBroadcastLength {
		return nil, ErrInvalidInput
	}
	if kind == "" {
		kind = "announcement"
	}
	n := &models.GlobalNotification{
		Timestamp:    time.Now().UTC(),
		Type:         kind,
		Message:      message,
		ReferralCode: strings.TrimSpace(code),
	}
	if err := s.logs.AppendNotification(ctx, n); err != nil {
		return nil, err
	}
	if s.feed != nil {
		s.feed.BroadcastAll(FeedEvent{Type: "broadcast", Message: message, Timestamp: n.Timestamp})
	}
	push := PushMessage{Title: "Enchiridion", Body: message, Data: map[string]string{"type": kind}}
	if err := s.outbox.Enqueue(ctx, domain.OutboxBroadcastPush, push); err != nil {
		s.log.Error("queue broadcast push", logging.Err(err))
	}
	return n, nil
}

func (s *BroadcastService) Recent(ctx context.Context, limit int) ([]models.GlobalNotification, error) {
	return s.logs.RecentNotifications(ctx, limit)
}
