package model

import (
	"time"

	"github.com/google/uuid"
)

// YoutubeVideoID is the external video identifier.
type YoutubeVideoID string

// DefaultAttemptCap is the number of failed transcript fetches after which a
// video is permanently skipped.
const DefaultAttemptCap = 10

// Video is one discovered unit of content. Immutable after discovery except
// for FailedAttempts and the presence of a Transcript/Summary.
type Video struct {
	ID             uuid.UUID
	YoutubeID      YoutubeVideoID
	ChannelID      uuid.UUID
	Title          string
	URL            string
	PublishedAt    time.Time
	Duration       string // ISO 8601 duration, stored verbatim
	DiscoveredAt   time.Time
	FailedAttempts int
}

// Transcript is the raw text of a video, fetched once. Re-fetching only
// happens while it is absent.
type Transcript struct {
	ID        uuid.UUID
	VideoID   uuid.UUID
	Text      string
	Language  string
	FetchedAt time.Time
}

// Summary condenses a transcript. Its presence is the terminal marker for the
// summarization stage.
type Summary struct {
	ID        uuid.UUID
	VideoID   uuid.UUID
	Text      string
	KeyPoints []string
	Model     string
	CreatedAt time.Time
}

// PendingSummary is a stage-3 work item: the video joined with its transcript
// text and channel, fully resolved at query time.
type PendingSummary struct {
	Video
	TranscriptText string
	ChannelName    string
}

// SummarizedVideo is a video joined with its summary and channel, as served
// by the API.
type SummarizedVideo struct {
	Video
	ChannelName string
	Summary     Summary
}
