package fetch

import (
	"time"

	"miniflux.app/client"

	"ytsum/model"
)

// FeedEntry is one unread item from the feed reader, already reduced to the
// parts discovery needs.
type FeedEntry struct {
	EntryID     int64
	YoutubeID   model.YoutubeVideoID
	ChannelURL  string
	Title       string
	PublishedAt time.Time
}

// FeedReader is an optional second discovery source next to the metadata
// client.
type FeedReader interface {
	Unread() ([]FeedEntry, error)
	MarkRead(entryID int64) error
}

type MinifluxInfo struct {
	Endpoint string
	ApiKey   string
}

type Miniflux struct {
	client *client.Client
}

func NewMiniflux(mflInfo MinifluxInfo) *Miniflux {
	return &Miniflux{
		client: client.New(mflInfo.Endpoint, mflInfo.ApiKey),
	}
}

func (m *Miniflux) Unread() ([]FeedEntry, error) {
	result, err := m.client.Entries(&client.Filter{Status: "unread"})
	if err != nil {
		return nil, err
	}

	entries := []FeedEntry{}
	for _, entry := range result.Entries {
		var channelURL string
		if entry.Feed != nil {
			channelURL = entry.Feed.SiteURL
		}
		entries = append(entries, FeedEntry{
			EntryID:     entry.ID,
			YoutubeID:   model.YoutubeVideoID(ExtractVideoID(entry.URL)),
			ChannelURL:  channelURL,
			Title:       entry.Title,
			PublishedAt: entry.Date,
		})
	}

	return entries, nil
}

func (m *Miniflux) MarkRead(entryID int64) error {
	return m.client.UpdateEntries([]int64{entryID}, "read")
}

var _ FeedReader = (*Miniflux)(nil)
