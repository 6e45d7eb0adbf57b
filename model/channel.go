package model

import (
	"time"

	"github.com/google/uuid"
)

// YoutubeChannelID is the external channel identifier (the "UC..." form).
type YoutubeChannelID string

// Channel is a followed content source. It is global: created when the first
// subscriber follows it, shared between subscribers, and removed when the
// last one unfollows.
type Channel struct {
	ID          uuid.UUID
	YoutubeID   YoutubeChannelID
	Name        string
	URL         string
	AddedAt     time.Time
	LastChecked time.Time // zero until the first discovery pass
}

// Subscriber is a user following channels. Notifications go out only when
// enabled and a chat address is linked.
type Subscriber struct {
	ID                   uuid.UUID
	Username             string
	TelegramChatID       string
	NotificationsEnabled bool
	AddedAt              time.Time
}

func (s Subscriber) Notifiable() bool {
	return s.NotificationsEnabled && s.TelegramChatID != ""
}
