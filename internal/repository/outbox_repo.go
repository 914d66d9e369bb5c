package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"enchiridion/internal/domain"
	"enchiridion/internal/models"

	"gorm.io/gorm"
)

// Outbox persists side effects until the worker delivers them.
type Outbox interface {
	Create(ctx context.Context, m *models.OutboxMessage) error
	// Due returns up to limit PENDING messages whose next attempt is not after now.
	Due(ctx context.Context, now time.Time, limit int) ([]models.OutboxMessage, error)
	Save(ctx context.Context, m *models.OutboxMessage) error
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, m *models.OutboxMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *OutboxRepository) Due(ctx context.Context, now time.Time, limit int) ([]models.OutboxMessage, error) {
	var list []models.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", domain.OutboxPending, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *OutboxRepository) Save(ctx context.Context, m *models.OutboxMessage) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *OutboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OutboxMessage{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

// MemoryOutbox is the Outbox used when no database is configured. Messages do not survive a restart.
type MemoryOutbox struct {
	mu   sync.Mutex
	msgs map[string]models.OutboxMessage
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{msgs: make(map[string]models.OutboxMessage)}
}

func (o *MemoryOutbox) Create(_ context.Context, m *models.OutboxMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	o.msgs[m.ID] = *m
	return nil
}

func (o *MemoryOutbox) Due(_ context.Context, now time.Time, limit int) ([]models.OutboxMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var list []models.OutboxMessage
	for _, m := range o.msgs {
		if m.Status == domain.OutboxPending && !m.NextAttemptAt.After(now) {
			list = append(list, m)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].NextAttemptAt.Before(list[j].NextAttemptAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (o *MemoryOutbox) Save(_ context.Context, m *models.OutboxMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	m.UpdatedAt = time.Now()
	o.msgs[m.ID] = *m
	return nil
}

func (o *MemoryOutbox) CountByStatus(_ context.Context, status string) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var n int64
	for _, m := range o.msgs {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}

// Get returns a copy of a message by id.
func (o *MemoryOutbox) Get(id string) (models.OutboxMessage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.msgs[id]
	return m, ok
}
