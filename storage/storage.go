package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ytsum/model"
)

var ErrNotFound = errors.New("not found")

// Repositories return flat, fully populated value structs. Joined data (a
// pending summary's transcript text, a summarized video's channel name) is
// resolved eagerly at query time.

type ChannelRepository interface {
	FindAll() ([]model.Channel, error)
	FindByYoutubeID(ytID model.YoutubeChannelID) (model.Channel, error)
	SetLastChecked(id uuid.UUID, t time.Time) error

	// Follow stores the channel if it is not known yet and subscribes the
	// subscriber to it. It returns the stored channel.
	Follow(subscriberID uuid.UUID, channel model.Channel) (model.Channel, error)
	// Unfollow removes the subscription. When the last subscriber leaves,
	// the channel and its videos are removed as well.
	Unfollow(subscriberID uuid.UUID, ytID model.YoutubeChannelID) error
}

type SubscriberRepository interface {
	Create(sub model.Subscriber) error
	FindByUsername(username string) (model.Subscriber, error)
	// Notifiable lists the subscribers of a channel that have notifications
	// enabled and a linked chat address.
	Notifiable(channelID uuid.UUID) ([]model.Subscriber, error)
}

type VideoRepository interface {
	// CreateIfAbsent inserts the video unless its external ID is already
	// known. It reports whether a row was inserted.
	CreateIfAbsent(video model.Video) (bool, error)
	// WithoutTranscript selects videos lacking a transcript whose failed
	// attempt count is below the cap, oldest discovery first.
	WithoutTranscript(attemptCap, limit int) ([]model.Video, error)
	// IncrementFailedAttempts atomically bumps the counter and returns the
	// new value.
	IncrementFailedAttempts(id uuid.UUID) (int, error)
	// PendingSummaries selects videos that have a transcript but no summary.
	PendingSummaries(limit int) ([]model.PendingSummary, error)
	// Summarized lists videos with their summaries, newest first.
	Summarized(limit int) ([]model.SummarizedVideo, error)
}

type TranscriptRepository interface {
	Create(transcript model.Transcript) error
}

type SummaryRepository interface {
	Create(summary model.Summary) error
}

type RunHistoryRepository interface {
	Append(run model.RunHistory) error
	FindRecent(limit int) ([]model.RunHistory, error)
}

// NotificationQueue is the durable outbox. The pipeline enqueues, the
// delivery worker consumes and terminalizes.
type NotificationQueue interface {
	Enqueue(item model.QueueItem) error
	Pending(limit int) ([]model.QueueItem, error)
	MarkSent(id uuid.UUID) error
	MarkFailed(id uuid.UUID, errMsg string) error
}

// SummaryIndex is an optional secondary index of summaries for semantic
// search. Indexing is best-effort.
type SummaryIndex interface {
	Index(ctx context.Context, video model.Video, summary model.Summary) error
}
