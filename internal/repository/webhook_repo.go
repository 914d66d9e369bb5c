package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"enchiridion/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookLedger records provider references so each event is processed once.
type WebhookLedger interface {
	// Claim inserts the reference and reports whether this call inserted it.
	Claim(ctx context.Context, provider, reference, event string) (bool, error)
	// Release drops a claim whose event could not be handed on, so a provider retry is processed again.
	Release(ctx context.Context, provider, reference string) error
}

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// Claim relies on the unique index on reference: a duplicate insert affects no rows.
func (r *WebhookRepository) Claim(ctx context.Context, provider, reference, event string) (bool, error) {
	ev := models.WebhookEvent{Provider: provider, Reference: reference, Event: event}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *WebhookRepository) Release(ctx context.Context, provider, reference string) error {
	return r.db.WithContext(ctx).
		Where("provider = ? AND reference = ?", provider, reference).
		Delete(&models.WebhookEvent{}).Error
}

type MemoryWebhookLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryWebhookLedger() *MemoryWebhookLedger {
	return &MemoryWebhookLedger{seen: make(map[string]time.Time)}
}

func (l *MemoryWebhookLedger) Claim(_ context.Context, _, reference, _ string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := strings.TrimSpace(reference)
	if _, ok := l.seen[key]; ok {
		return false, nil
	}
	l.seen[key] = time.Now()
	return true, nil
}

func (l *MemoryWebhookLedger) Release(_ context.Context, _, reference string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, strings.TrimSpace(reference))
	return nil
}
