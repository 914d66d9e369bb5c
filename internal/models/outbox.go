package models

import "time"

// OutboxMessage is a side effect waiting to be delivered by the outbox worker.
type OutboxMessage struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Kind          string     `gorm:"size:32;not null;index" json:"kind"`
	Payload       string     `gorm:"type:text;not null" json:"payload"`                              // JSON
	Status        string     `gorm:"size:16;not null;index:idx_outbox_due,priority:1" json:"status"` // PENDING, DONE, DEAD
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts   int        `gorm:"not null" json:"max_attempts"`
	NextAttemptAt time.Time  `gorm:"not null;index:idx_outbox_due,priority:2" json:"next_attempt_at"`
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (OutboxMessage) TableName() string { return "outbox_messages" }

// WebhookEvent records a processed provider reference; the unique index makes the insert the dedupe check.
type WebhookEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Provider  string    `gorm:"size:32;not null" json:"provider"`
	Reference string    `gorm:"size:191;not null;uniqueIndex" json:"reference"`
	Event     string    `gorm:"size:64" json:"event"`
	CreatedAt time.Time `json:"created_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
