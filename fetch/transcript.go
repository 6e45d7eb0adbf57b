package fetch

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ytsum/model"
)

// ErrTranscriptUnavailable marks the definitive outcomes: captions disabled,
// video gone, no tracks. Transport problems are returned as plain errors.
var ErrTranscriptUnavailable = errors.New("transcript unavailable")

// TranscriptFetcher fetches the transcript text and language for a video.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID model.YoutubeVideoID) (text, language string, err error)
}

// TimedtextConfig configures the transcript client. ProxyURLs is optional;
// when set, requests rotate through the pool. RateLimit is requests per
// second, 0 disables limiting.
type TimedtextConfig struct {
	BaseURL   string
	ProxyURLs []string
	RateLimit float64
	Timeout   time.Duration
	Retry     RetryConfig
}

// Timedtext reads captions straight from YouTube's timedtext endpoint.
type Timedtext struct {
	baseURL string
	clients []*http.Client
	limiter *rate.Limiter
	retry   RetryConfig

	mu   sync.Mutex
	next int
}

func NewTimedtext(cfg TimedtextConfig) (*Timedtext, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.youtube.com/api/timedtext"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = DefaultRetryConfig
	}

	clients := []*http.Client{}
	for _, raw := range cfg.ProxyURLs {
		proxyURL, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		clients = append(clients, &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		})
	}
	if len(clients) == 0 {
		clients = append(clients, &http.Client{Timeout: cfg.Timeout})
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Timedtext{
		baseURL: cfg.BaseURL,
		clients: clients,
		limiter: limiter,
		retry:   cfg.Retry,
	}, nil
}

func (t *Timedtext) Transcript(ctx context.Context, videoID model.YoutubeVideoID) (string, string, error) {
	language, err := t.pickLanguage(ctx, videoID)
	if err != nil {
		return "", "", err
	}

	params := url.Values{}
	params.Set("v", string(videoID))
	params.Set("lang", language)
	params.Set("fmt", "json3")
	body, err := t.get(ctx, params)
	if err != nil {
		return "", "", err
	}

	text, err := parseTimedtext(body)
	if err != nil {
		return "", "", err
	}
	if text == "" {
		return "", "", fmt.Errorf("video %s: %w", videoID, ErrTranscriptUnavailable)
	}

	return text, language, nil
}

// pickLanguage lists the caption tracks and prefers English, falling back to
// the first available track.
func (t *Timedtext) pickLanguage(ctx context.Context, videoID model.YoutubeVideoID) (string, error) {
	params := url.Values{}
	params.Set("type", "list")
	params.Set("v", string(videoID))
	body, err := t.get(ctx, params)
	if err != nil {
		return "", err
	}

	var list trackList
	if err := xml.Unmarshal(body, &list); err != nil {
		return "", fmt.Errorf("parse track list: %w", err)
	}
	if len(list.Tracks) == 0 {
		return "", fmt.Errorf("video %s has no caption tracks: %w", videoID, ErrTranscriptUnavailable)
	}

	for _, track := range list.Tracks {
		if track.LangCode == "en" || strings.HasPrefix(track.LangCode, "en-") {
			return track.LangCode, nil
		}
	}

	return list.Tracks[0].LangCode, nil
}

// get performs a rate limited, retried request through the next client in
// the pool.
func (t *Timedtext) get(ctx context.Context, params url.Values) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqURL := fmt.Sprintf("%s?%s", t.baseURL, params.Encode())

	return RetryDo(ctx, t.retry, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := t.nextClient().Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return io.ReadAll(resp.Body)
		case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("timedtext status %d: %w", resp.StatusCode, ErrTranscriptUnavailable)
		case isRetryableStatus(resp.StatusCode):
			return nil, &httpStatusError{StatusCode: resp.StatusCode}
		default:
			return nil, fmt.Errorf("timedtext status %d", resp.StatusCode)
		}
	})
}

func (t *Timedtext) nextClient() *http.Client {
	t.mu.Lock()
	defer t.mu.Unlock()

	client := t.clients[t.next]
	t.next = (t.next + 1) % len(t.clients)

	return client
}

type trackList struct {
	XMLName xml.Name `xml:"transcript_list"`
	Tracks  []struct {
		LangCode string `xml:"lang_code,attr"`
	} `xml:"track"`
}

type timedtextResponse struct {
	Events []struct {
		Segs []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func parseTimedtext(body []byte) (string, error) {
	var resp timedtextResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse timedtext response: %w", err)
	}

	var b strings.Builder
	for _, event := range resp.Events {
		for _, seg := range event.Segs {
			b.WriteString(seg.UTF8)
		}
		b.WriteString(" ")
	}

	return strings.Join(strings.Fields(b.String()), " "), nil
}

var _ TranscriptFetcher = (*Timedtext)(nil)
