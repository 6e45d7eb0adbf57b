package model

import (
	"time"

	"github.com/google/uuid"
)

// RunHistory is the audit record of one pipeline cycle. Append-only, never
// mutated after creation.
type RunHistory struct {
	ID              uuid.UUID
	StartedAt       time.Time
	VideosFound     int
	VideosProcessed int
	Errors          []string
	Success         bool
	DurationSeconds int
}

// QueueItemStatus is the delivery state of a queued notification.
type QueueItemStatus string

const (
	QueueStatusPending QueueItemStatus = "pending"
	QueueStatusSent    QueueItemStatus = "sent"
	QueueStatusFailed  QueueItemStatus = "failed"
)

// DefaultQueueMaxRetries bounds delivery attempts per queue item.
const DefaultQueueMaxRetries = 3

// QueueItem is a pending notification. The pipeline produces items, the
// delivery worker consumes them and terminalizes their status.
type QueueItem struct {
	ID           uuid.UUID
	SubscriberID uuid.UUID
	ChatID       string
	Message      string
	Status       QueueItemStatus
	ErrorMessage string
	RetryCount   int
	MaxRetries   int
	CreatedAt    time.Time
	SentAt       time.Time // zero until delivered
}
