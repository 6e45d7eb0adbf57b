package fetch

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/youtube/v3"

	"ytsum/model"
)

type Youtube struct {
	client *youtube.Service
}

func NewYoutube(client *youtube.Service) *Youtube {
	return &Youtube{client: client}
}

func (y *Youtube) RecentVideos(ctx context.Context, channelID model.YoutubeChannelID, sinceDays, maxResults int) ([]VideoMeta, error) {
	publishedAfter := time.Now().UTC().AddDate(0, 0, -sinceDays).Format(time.RFC3339)

	searchResp, err := y.client.Search.List([]string{"snippet"}).
		ChannelId(string(channelID)).
		Type("video").
		Order("date").
		PublishedAfter(publishedAfter).
		MaxResults(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}
	if len(searchResp.Items) == 0 {
		return []VideoMeta{}, nil
	}

	ids := make([]string, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		ids = append(ids, item.Id.VideoId)
	}

	// a second call for contentDetails, the search endpoint has no duration
	videosResp, err := y.client.Videos.List([]string{"snippet", "contentDetails"}).
		Id(strings.Join(ids, ",")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetch video details: %w", err)
	}

	metas := make([]VideoMeta, 0, len(videosResp.Items))
	for _, item := range videosResp.Items {
		publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("parse published timestamp of %s: %w", item.Id, err)
		}
		metas = append(metas, VideoMeta{
			YoutubeID:   model.YoutubeVideoID(item.Id),
			Title:       item.Snippet.Title,
			PublishedAt: publishedAt,
			URL:         fmt.Sprintf("https://www.youtube.com/watch?v=%s", item.Id),
			Duration:    item.ContentDetails.Duration,
		})
	}

	return metas, nil
}

// ResolveChannel accepts a channel ID, username, handle or URL.
func (y *Youtube) ResolveChannel(ctx context.Context, identifier string) (ChannelInfo, error) {
	if id := ExtractChannelID(identifier); id != "" {
		resp, err := y.client.Channels.List([]string{"snippet"}).
			Id(id).
			Context(ctx).
			Do()
		if err != nil {
			return ChannelInfo{}, fmt.Errorf("look up channel %s: %w", id, err)
		}
		if len(resp.Items) > 0 {
			return channelInfo(resp.Items[0].Id, resp.Items[0].Snippet.Title), nil
		}
	}

	resp, err := y.client.Search.List([]string{"snippet"}).
		Q(identifier).
		Type("channel").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("search channel %q: %w", identifier, err)
	}
	if len(resp.Items) == 0 {
		return ChannelInfo{}, fmt.Errorf("channel %q: %w", identifier, ErrChannelNotFound)
	}

	item := resp.Items[0]
	return channelInfo(item.Snippet.ChannelId, item.Snippet.Title), nil
}

func channelInfo(id, name string) ChannelInfo {
	return ChannelInfo{
		YoutubeID: model.YoutubeChannelID(id),
		Name:      name,
		URL:       fmt.Sprintf("https://www.youtube.com/channel/%s", id),
	}
}

var ErrChannelNotFound = fmt.Errorf("channel not found")

var channelIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/channel/(UC[\w-]+)`),
}

var bareChannelID = regexp.MustCompile(`^UC[\w-]{22}$`)

// ExtractChannelID pulls a channel ID out of a URL, or returns the input when
// it already is one. Empty result means the identifier needs a search.
func ExtractChannelID(urlOrID string) string {
	if bareChannelID.MatchString(urlOrID) {
		return urlOrID
	}
	for _, pattern := range channelIDPatterns {
		if m := pattern.FindStringSubmatch(urlOrID); m != nil {
			return m[1]
		}
	}

	return ""
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?v=([\w-]+)`),
	regexp.MustCompile(`youtu\.be/([\w-]+)`),
	regexp.MustCompile(`youtube\.com/embed/([\w-]+)`),
}

var bareVideoID = regexp.MustCompile(`^[\w-]{11}$`)

// ExtractVideoID pulls a video ID out of a URL, or returns the input when it
// already is one.
func ExtractVideoID(urlOrID string) string {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(urlOrID); m != nil {
			return m[1]
		}
	}
	if bareVideoID.MatchString(urlOrID) {
		return urlOrID
	}

	return ""
}

var _ MetadataFetcher = (*Youtube)(nil)
var _ ChannelResolver = (*Youtube)(nil)
