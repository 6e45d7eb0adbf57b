package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ytsum/fetch"
	"ytsum/model"
	"ytsum/storage"
)

// Limits holds the pipeline's policy parameters. The numbers are
// conventions, not discovered truths, so all of them are configurable.
type Limits struct {
	LookbackDays      int // discovery window per channel
	MaxVideosPerCheck int // discovery results per channel
	TranscriptBatch   int // stage 2 selection size per run
	SummaryBatch      int // stage 3 selection size per run, paid calls
	AttemptCap        int // failed transcript fetches before giving up
	TranscriptBudget  int // characters of transcript passed to the LLM
	SummaryMaxWords   int
	MaxKeyPoints      int
	QueueMaxRetries   int
	SummaryBaseURL    string // public base for summary links in notifications
}

func DefaultLimits() Limits {
	return Limits{
		LookbackDays:      7,
		MaxVideosPerCheck: 50,
		TranscriptBatch:   50,
		SummaryBatch:      30,
		AttemptCap:        model.DefaultAttemptCap,
		TranscriptBudget:  15000,
		SummaryMaxWords:   500,
		MaxKeyPoints:      5,
		QueueMaxRetries:   model.DefaultQueueMaxRetries,
		SummaryBaseURL:    "http://localhost:8080/video",
	}
}

// Store bundles the repositories the pipeline writes to.
type Store struct {
	Channels    storage.ChannelRepository
	Subscribers storage.SubscriberRepository
	Videos      storage.VideoRepository
	Transcripts storage.TranscriptRepository
	Summaries   storage.SummaryRepository
	Runs        storage.RunHistoryRepository
	Queue       storage.NotificationQueue
}

// Clients bundles the external collaborators. Feed and Index are optional.
type Clients struct {
	Metadata   fetch.MetadataFetcher
	Transcript fetch.TranscriptFetcher
	Summarizer Summarizer
	Feed       fetch.FeedReader
	Index      storage.SummaryIndex
}

// Pipeline executes one complete check-and-process cycle per RunCycle call.
// Failures are per item: one channel, video or subscriber going wrong is
// recorded and the cycle moves on.
type Pipeline struct {
	store   Store
	clients Clients
	limits  Limits
	logger  *slog.Logger
}

func NewPipeline(store Store, clients Clients, limits Limits, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:   store,
		clients: clients,
		limits:  limits,
		logger:  logger,
	}
}

// RunCycle runs discovery, transcript acquisition and summarization, in that
// order, and always appends a RunHistory record, whatever happens. It never
// returns an error and never panics.
func (p *Pipeline) RunCycle(ctx context.Context) model.RunHistory {
	start := time.Now()
	run := model.RunHistory{
		ID:        uuid.New(),
		StartedAt: start,
		Errors:    []string{},
	}

	p.runStages(ctx, &run)

	run.Success = len(run.Errors) == 0
	run.DurationSeconds = int(time.Since(start).Seconds())
	if err := p.store.Runs.Append(run); err != nil {
		p.logger.Error("failed to record run history", slog.String("error", err.Error()))
	}
	p.logger.Info("check completed",
		slog.Int("found", run.VideosFound),
		slog.Int("processed", run.VideosProcessed),
		slog.Int("errors", len(run.Errors)))

	return run
}

// runStages isolates the panic boundary: a fault escaping a stage becomes a
// single fatal error entry while the counts accumulated so far stand.
func (p *Pipeline) runStages(ctx context.Context, run *model.RunHistory) {
	defer func() {
		if r := recover(); r != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("fatal error in run cycle: %v", r))
			p.logger.Error("run cycle fault", slog.Any("panic", r))
		}
	}()

	p.discover(ctx, run)
	p.fetchTranscripts(ctx, run)
	p.summarize(ctx, run)
}

// discover checks every followed channel for videos published within the
// lookback window. Insertion is keyed on the external video ID, so
// re-running discovery never duplicates a video.
func (p *Pipeline) discover(ctx context.Context, run *model.RunHistory) {
	channels, err := p.store.Channels.FindAll()
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("list channels: %v", err))
		return
	}

	for _, channel := range channels {
		p.logger.Info("checking channel", slog.String("channel", channel.Name))
		metas, err := p.clients.Metadata.RecentVideos(ctx, channel.YoutubeID, p.limits.LookbackDays, p.limits.MaxVideosPerCheck)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("check channel %s: %v", channel.Name, err))
			continue
		}

		for _, meta := range metas {
			inserted, err := p.store.Videos.CreateIfAbsent(model.Video{
				ID:           uuid.New(),
				YoutubeID:    meta.YoutubeID,
				ChannelID:    channel.ID,
				Title:        meta.Title,
				URL:          meta.URL,
				PublishedAt:  meta.PublishedAt,
				Duration:     meta.Duration,
				DiscoveredAt: time.Now(),
			})
			if err != nil {
				run.Errors = append(run.Errors, fmt.Sprintf("store video %s: %v", meta.Title, err))
				continue
			}
			if inserted {
				run.VideosFound++
				p.logger.Info("found new video", slog.String("title", meta.Title))
			}
		}

		// failed inserts do not block the checkpoint
		if err := p.store.Channels.SetLastChecked(channel.ID, time.Now()); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("update last checked for %s: %v", channel.Name, err))
		}
	}

	if p.clients.Feed != nil {
		p.readFeed(run)
	}
}

// readFeed drains unread feed entries as a second discovery source. Entries
// for channels nobody follows are skipped.
func (p *Pipeline) readFeed(run *model.RunHistory) {
	entries, err := p.clients.Feed.Unread()
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("read feed entries: %v", err))
		return
	}

	for _, entry := range entries {
		if entry.YoutubeID == "" {
			p.markRead(entry.EntryID, run)
			continue
		}
		channel, err := p.store.Channels.FindByYoutubeID(model.YoutubeChannelID(fetch.ExtractChannelID(entry.ChannelURL)))
		if errors.Is(err, storage.ErrNotFound) {
			p.markRead(entry.EntryID, run)
			continue
		}
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("match feed entry %s to channel: %v", entry.Title, err))
			continue
		}

		inserted, err := p.store.Videos.CreateIfAbsent(model.Video{
			ID:           uuid.New(),
			YoutubeID:    entry.YoutubeID,
			ChannelID:    channel.ID,
			Title:        entry.Title,
			URL:          fmt.Sprintf("https://www.youtube.com/watch?v=%s", entry.YoutubeID),
			PublishedAt:  entry.PublishedAt,
			DiscoveredAt: time.Now(),
		})
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("store video %s: %v", entry.Title, err))
			continue
		}
		if inserted {
			run.VideosFound++
		}
		p.markRead(entry.EntryID, run)
	}
}

func (p *Pipeline) markRead(entryID int64, run *model.RunHistory) {
	if err := p.clients.Feed.MarkRead(entryID); err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("mark feed entry %d read: %v", entryID, err))
	}
}

// fetchTranscripts handles stage 2. Every failed fetch, unavailable or
// transport alike, bumps the video's attempt counter; at the cap the video is
// abandoned and never selected again.
func (p *Pipeline) fetchTranscripts(ctx context.Context, run *model.RunHistory) {
	videos, err := p.store.Videos.WithoutTranscript(p.limits.AttemptCap, p.limits.TranscriptBatch)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("select videos without transcript: %v", err))
		return
	}

	for _, video := range videos {
		text, language, err := p.clients.Transcript.Transcript(ctx, video.YoutubeID)
		switch {
		case err == nil:
			if err := p.store.Transcripts.Create(model.Transcript{
				ID:        uuid.New(),
				VideoID:   video.ID,
				Text:      text,
				Language:  language,
				FetchedAt: time.Now(),
			}); err != nil {
				run.Errors = append(run.Errors, fmt.Sprintf("store transcript for %s: %v", video.Title, err))
				continue
			}
			p.logger.Info("fetched transcript", slog.String("title", video.Title), slog.String("language", language))
		case errors.Is(err, fetch.ErrTranscriptUnavailable):
			p.logger.Warn("transcript unavailable", slog.String("title", video.Title))
			run.Errors = append(run.Errors, fmt.Sprintf("transcript unavailable for %s: %v", video.Title, err))
			p.recordFailedAttempt(video, run)
		default:
			p.logger.Error("transcript fetch failed", slog.String("title", video.Title), slog.String("error", err.Error()))
			run.Errors = append(run.Errors, fmt.Sprintf("fetch transcript for %s: %v", video.Title, err))
			p.recordFailedAttempt(video, run)
		}
	}
}

func (p *Pipeline) recordFailedAttempt(video model.Video, run *model.RunHistory) {
	count, err := p.store.Videos.IncrementFailedAttempts(video.ID)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("record failed attempt for %s: %v", video.Title, err))
		return
	}
	if count >= p.limits.AttemptCap {
		p.logger.Info("giving up on video",
			slog.String("title", video.Title),
			slog.Int("attempts", count))
	}
}

// summarize handles stage 3 and fans out notifications for every summary it
// stores. Notification problems never undo a stored summary.
func (p *Pipeline) summarize(ctx context.Context, run *model.RunHistory) {
	pending, err := p.store.Videos.PendingSummaries(p.limits.SummaryBatch)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("select videos without summary: %v", err))
		return
	}

	for _, item := range pending {
		p.logger.Info("summarizing", slog.String("title", item.Title))
		text := truncateTranscript(item.TranscriptText, p.limits.TranscriptBudget)
		summaryText, keyPoints, err := p.clients.Summarizer.Summarize(ctx, text, item.Title, p.limits.SummaryMaxWords, p.limits.MaxKeyPoints)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("summarize %s: %v", item.Title, err))
			continue
		}

		summary := model.Summary{
			ID:        uuid.New(),
			VideoID:   item.ID,
			Text:      summaryText,
			KeyPoints: keyPoints,
			Model:     p.clients.Summarizer.Model(),
			CreatedAt: time.Now(),
		}
		if err := p.store.Summaries.Create(summary); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("store summary for %s: %v", item.Title, err))
			continue
		}
		run.VideosProcessed++

		if p.clients.Index != nil {
			if err := p.clients.Index.Index(ctx, item.Video, summary); err != nil {
				p.logger.Error("failed to index summary", slog.String("title", item.Title), slog.String("error", err.Error()))
			}
		}

		p.notify(item, run)
	}
}

// notify enqueues one message per notifiable subscriber of the video's
// channel. Each enqueue fails on its own.
func (p *Pipeline) notify(item model.PendingSummary, run *model.RunHistory) {
	subs, err := p.store.Subscribers.Notifiable(item.ChannelID)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("list subscribers for %s: %v", item.ChannelName, err))
		return
	}

	message := p.renderNotification(item)
	for _, sub := range subs {
		if err := p.store.Queue.Enqueue(model.QueueItem{
			ID:           uuid.New(),
			SubscriberID: sub.ID,
			ChatID:       sub.TelegramChatID,
			Message:      message,
			Status:       model.QueueStatusPending,
			MaxRetries:   p.limits.QueueMaxRetries,
			CreatedAt:    time.Now(),
		}); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("queue notification for %s: %v", sub.Username, err))
		}
	}
}

func (p *Pipeline) renderNotification(item model.PendingSummary) string {
	summaryURL := fmt.Sprintf("%s/%s", p.limits.SummaryBaseURL, item.YoutubeID)

	return fmt.Sprintf("*New Summary Available*\n\n*%s*\nChannel: %s\nDuration: %s\n\n[Watch Video](%s)\n[View Summary](%s)",
		item.Title, item.ChannelName, item.Duration, item.URL, summaryURL)
}

// Backlog reports whether summarization work is already waiting.
func (p *Pipeline) Backlog() bool {
	pending, err := p.store.Videos.PendingSummaries(1)

	return err == nil && len(pending) > 0
}

func truncateTranscript(text string, budget int) string {
	if budget <= 0 || len(text) <= budget {
		return text
	}

	return text[:budget] + "... [truncated]"
}
