package fetch

import (
	"context"
	"time"

	"ytsum/model"
)

// VideoMeta is what discovery learns about a video before it is stored.
type VideoMeta struct {
	YoutubeID   model.YoutubeVideoID
	Title       string
	PublishedAt time.Time
	URL         string
	Duration    string // ISO 8601, passed through verbatim
}

// MetadataFetcher lists the videos a channel published within the lookback
// window.
type MetadataFetcher interface {
	RecentVideos(ctx context.Context, channelID model.YoutubeChannelID, sinceDays, maxResults int) ([]VideoMeta, error)
}

// ChannelInfo describes a resolved channel.
type ChannelInfo struct {
	YoutubeID model.YoutubeChannelID
	Name      string
	URL       string
}

// ChannelResolver turns a channel URL, handle or ID into channel info.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, identifier string) (ChannelInfo, error)
}
