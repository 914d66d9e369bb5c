package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"enchiridion/config"
	"enchiridion/internal/domain"
	"enchiridion/internal/logging"
	"enchiridion/internal/metrics"
	"enchiridion/internal/models"
	"enchiridion/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Enqueuer accepts side effects for later delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

// OutboxHandler delivers one message. A returned error schedules a retry.
type OutboxHandler func(ctx context.Context, payload []byte) error

// OutboxWorker polls the outbox and delivers due messages with exponential
// backoff, dead-lettering a message once it runs out of attempts.
type OutboxWorker struct {
	repo     repository.Outbox
	cfg      config.OutboxConfig
	log      *zap.Logger
	handlers map[string]OutboxHandler
	now      func() time.Time
}

func NewOutboxWorker(repo repository.Outbox, cfg config.OutboxConfig, log *zap.Logger) *OutboxWorker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &OutboxWorker{
		repo:     repo,
		cfg:      cfg,
		log:      log.Named("outbox"),
		handlers: make(map[string]OutboxHandler),
		now:      time.Now,
	}
}

// Register binds a handler to a message kind. Call before Run.
func (w *OutboxWorker) Register(kind string, h OutboxHandler) {
	w.handlers[kind] = h
}

func (w *OutboxWorker) Enqueue(ctx context.Context, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: encode %s: %w", kind, err)
	}
	msg := &models.OutboxMessage{
		ID:            uuid.NewString(),
		Kind:          kind,
		Payload:       string(body),
		Status:        domain.OutboxPending,
		MaxAttempts:   w.cfg.MaxAttempts,
		NextAttemptAt: w.now(),
	}
	if err := w.repo.Create(ctx, msg); err != nil {
		return fmt.Errorf("outbox: enqueue %s: %w", kind, err)
	}
	return nil
}

// Run polls until ctx is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) {
	interval := w.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	w.log.Info("worker started", zap.Duration("interval", interval))
	for {
		if _, err := w.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("poll failed", logging.Err(err))
		}
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessDue delivers one batch of due messages and returns how many were delivered.
func (w *OutboxWorker) ProcessDue(ctx context.Context) (int, error) {
	due, err := w.repo.Due(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		if w.deliver(ctx, &due[i]) {
			delivered++
		}
	}
	return delivered, nil
}

func (w *OutboxWorker) deliver(ctx context.Context, m *models.OutboxMessage) bool {
	m.Attempts++
	h, ok := w.handlers[m.Kind]
	var err error
	if !ok {
		err = fmt.Errorf("no handler for kind %q", m.Kind)
		m.Attempts = m.MaxAttempts
	} else {
		err = h(ctx, []byte(m.Payload))
	}

	log := w.log.With(zap.String("id", m.ID), zap.String("kind", m.Kind), zap.Int("attempt", m.Attempts))
	switch {
	case err == nil:
		now := w.now()
		m.Status = domain.OutboxDone
		m.DeliveredAt = &now
		m.LastError = ""
		metrics.OutboxDeliveries.WithLabelValues(m.Kind, "done").Inc()
	case m.Attempts >= m.MaxAttempts:
		m.Status = domain.OutboxDead
		m.LastError = logging.Scrub(err.Error())
		metrics.OutboxDeliveries.WithLabelValues(m.Kind, "dead").Inc()
		log.Error("dead-lettered", logging.Err(err))
	default:
		m.LastError = logging.Scrub(err.Error())
		m.NextAttemptAt = w.now().Add(w.backoff(m.Attempts))
		metrics.OutboxDeliveries.WithLabelValues(m.Kind, "retry").Inc()
		log.Warn("delivery failed, will retry", logging.Err(err), zap.Time("next_attempt_at", m.NextAttemptAt))
	}
	if serr := w.repo.Save(ctx, m); serr != nil {
		log.Error("save outbox message", logging.Err(serr))
	}
	return err == nil
}

// backoff is base * 2^(attempts-1), capped at MaxBackoff.
func (w *OutboxWorker) backoff(attempts int) time.Duration {
	d := w.cfg.BaseBackoff
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < attempts; i++ {
		d *= 2
		if w.cfg.MaxBackoff > 0 && d >= w.cfg.MaxBackoff {
			return w.cfg.MaxBackoff
		}
	}
	if w.cfg.MaxBackoff > 0 && d > w.cfg.MaxBackoff {
		return w.cfg.MaxBackoff
	}
	return d
}
