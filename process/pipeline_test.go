package process

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"ytsum/fetch"
	"ytsum/model"
	"ytsum/storage"
)

type fakeMetadata struct {
	videos map[model.YoutubeChannelID][]fetch.VideoMeta
	errs   map[model.YoutubeChannelID]error
	panics bool
}

func (f *fakeMetadata) RecentVideos(_ context.Context, channelID model.YoutubeChannelID, _, _ int) ([]fetch.VideoMeta, error) {
	if f.panics {
		panic("metadata client gone")
	}
	if err := f.errs[channelID]; err != nil {
		return nil, err
	}

	return f.videos[channelID], nil
}

type transcriptResult struct {
	text     string
	language string
	err      error
}

type fakeTranscript struct {
	results map[model.YoutubeVideoID]transcriptResult
}

func (f *fakeTranscript) Transcript(_ context.Context, videoID model.YoutubeVideoID) (string, string, error) {
	res, ok := f.results[videoID]
	if !ok {
		return "", "", errors.New("unexpected video")
	}

	return res.text, res.language, res.err
}

type fakeSummarizer struct {
	err      error
	lastText string
	calls    int
}

func (f *fakeSummarizer) Summarize(_ context.Context, text, _ string, _, _ int) (string, []string, error) {
	f.calls++
	f.lastText = text
	if f.err != nil {
		return "", nil, f.err
	}

	return "a summary", []string{"point one", "point two"}, nil
}

func (f *fakeSummarizer) Model() string { return "test-model" }

type failingQueue struct {
	storage.NotificationQueue
	failFor map[string]bool
}

func (q *failingQueue) Enqueue(item model.QueueItem) error {
	if q.failFor[item.ChatID] {
		return errors.New("queue full")
	}

	return q.NotificationQueue.Enqueue(item)
}

type testEnv struct {
	store      Store
	metadata   *fakeMetadata
	transcript *fakeTranscript
	summarizer *fakeSummarizer
	limits     Limits
}

func newTestEnv() *testEnv {
	mem := storage.NewMemory()

	return &testEnv{
		store: Store{
			Channels:    storage.NewMemoryChannelRepository(mem),
			Subscribers: storage.NewMemorySubscriberRepository(mem),
			Videos:      storage.NewMemoryVideoRepository(mem),
			Transcripts: storage.NewMemoryTranscriptRepository(mem),
			Summaries:   storage.NewMemorySummaryRepository(mem),
			Runs:        storage.NewMemoryRunHistoryRepository(mem),
			Queue:       storage.NewMemoryNotificationQueue(mem),
		},
		metadata:   &fakeMetadata{videos: map[model.YoutubeChannelID][]fetch.VideoMeta{}, errs: map[model.YoutubeChannelID]error{}},
		transcript: &fakeTranscript{results: map[model.YoutubeVideoID]transcriptResult{}},
		summarizer: &fakeSummarizer{},
		limits:     DefaultLimits(),
	}
}

func (e *testEnv) pipeline() *Pipeline {
	clients := Clients{
		Metadata:   e.metadata,
		Transcript: e.transcript,
		Summarizer: e.summarizer,
	}

	return NewPipeline(e.store, clients, e.limits, discardLogger())
}

func (e *testEnv) followChannel(t *testing.T, ytID model.YoutubeChannelID, name string) model.Channel {
	t.Helper()
	sub := model.Subscriber{ID: uuid.New(), Username: "tester"}
	if err := e.store.Subscribers.Create(sub); err != nil {
		t.Fatal(err)
	}
	channel, err := e.store.Channels.Follow(sub.ID, model.Channel{
		ID:        uuid.New(),
		YoutubeID: ytID,
		Name:      name,
		AddedAt:   time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	return channel
}

func (e *testEnv) addSubscriber(t *testing.T, channel model.Channel, username, chatID string, enabled bool) {
	t.Helper()
	sub := model.Subscriber{
		ID:                   uuid.New(),
		Username:             username,
		TelegramChatID:       chatID,
		NotificationsEnabled: enabled,
	}
	if err := e.store.Subscribers.Create(sub); err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.Channels.Follow(sub.ID, channel); err != nil {
		t.Fatal(err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func meta(ytID, title string) fetch.VideoMeta {
	return fetch.VideoMeta{
		YoutubeID:   model.YoutubeVideoID(ytID),
		Title:       title,
		URL:         "https://www.youtube.com/watch?v=" + ytID,
		PublishedAt: time.Now().Add(-time.Hour),
		Duration:    "PT10M",
	}
}

func TestRunCycleDiscoveryIsIdempotent(t *testing.T) {
	env := newTestEnv()
	channel := env.followChannel(t, "UCchan111", "Channel One")
	env.metadata.videos[channel.YoutubeID] = []fetch.VideoMeta{meta("vid00000001", "First")}
	env.transcript.results["vid00000001"] = transcriptResult{text: "hello world", language: "en"}
	p := env.pipeline()

	run := p.RunCycle(context.Background())
	if !run.Success {
		t.Fatalf("expected success, got errors %v", run.Errors)
	}
	if run.VideosFound != 1 {
		t.Errorf("expected 1 video found, got %d", run.VideosFound)
	}

	run = p.RunCycle(context.Background())
	if run.VideosFound != 0 {
		t.Errorf("expected 0 videos found on second cycle, got %d", run.VideosFound)
	}

	runs, err := env.store.Runs.FindRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 run records, got %d", len(runs))
	}
}

func TestRunCycleChannelErrorDoesNotBlockOthers(t *testing.T) {
	env := newTestEnv()
	broken := env.followChannel(t, "UCbroken01", "Broken")
	working := env.followChannel(t, "UCworking1", "Working")
	env.metadata.errs[broken.YoutubeID] = errors.New("quota exceeded")
	env.metadata.videos[working.YoutubeID] = []fetch.VideoMeta{meta("vid00000002", "Still Here")}
	env.transcript.results["vid00000002"] = transcriptResult{text: "text", language: "en"}
	p := env.pipeline()

	run := p.RunCycle(context.Background())

	if run.Success {
		t.Error("expected run to be marked unsuccessful")
	}
	if run.VideosFound != 1 {
		t.Errorf("expected the working channel's video, got %d found", run.VideosFound)
	}
	found := false
	for _, msg := range run.Errors {
		if strings.Contains(msg, "check channel Broken") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a channel check error, got %v", run.Errors)
	}

	stored, err := env.store.Channels.FindByYoutubeID(broken.YoutubeID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.LastChecked.IsZero() {
		t.Error("last checked should not advance when the channel fetch fails")
	}
	stored, err = env.store.Channels.FindByYoutubeID(working.YoutubeID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastChecked.IsZero() {
		t.Error("last checked should advance for the working channel")
	}
}

func TestRunCycleTranscriptOutcomes(t *testing.T) {
	env := newTestEnv()
	channel := env.followChannel(t, "UCchan111", "Channel One")
	env.metadata.videos[channel.YoutubeID] = []fetch.VideoMeta{
		meta("vidok000001", "Has Captions"),
		meta("vidgone0001", "No Captions"),
		meta("vidflaky001", "Flaky"),
	}
	env.transcript.results["vidok000001"] = transcriptResult{text: "the transcript", language: "en"}
	env.transcript.results["vidgone0001"] = transcriptResult{err: fetch.ErrTranscriptUnavailable}
	env.transcript.results["vidflaky001"] = transcriptResult{err: errors.New("connection reset")}
	p := env.pipeline()

	run := p.RunCycle(context.Background())

	if run.Success {
		t.Error("expected run to be marked unsuccessful")
	}
	hasUnavailable, hasTransport := false, false
	for _, msg := range run.Errors {
		if strings.HasPrefix(msg, "transcript unavailable for No Captions") {
			hasUnavailable = true
		}
		if strings.HasPrefix(msg, "fetch transcript for Flaky") {
			hasTransport = true
		}
	}
	if !hasUnavailable {
		t.Errorf("expected an unavailable error, got %v", run.Errors)
	}
	if !hasTransport {
		t.Errorf("expected a transport error, got %v", run.Errors)
	}

	// both failures bumped their counters, the success did not
	remaining, err := env.store.Videos.WithoutTranscript(env.limits.AttemptCap, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 videos still without transcript, got %d", len(remaining))
	}
	for _, v := range remaining {
		if v.FailedAttempts != 1 {
			t.Errorf("video %s has %d failed attempts, expected 1", v.YoutubeID, v.FailedAttempts)
		}
	}
}

func TestRunCycleGivesUpAtAttemptCap(t *testing.T) {
	env := newTestEnv()
	channel := env.followChannel(t, "UCchan111", "Channel One")
	env.metadata.videos[channel.YoutubeID] = []fetch.VideoMeta{meta("vidgone0001", "No Captions")}
	env.transcript.results["vidgone0001"] = transcriptResult{err: fetch.ErrTranscriptUnavailable}
	env.limits.AttemptCap = 10
	p := env.pipeline()

	for i := 0; i < 12; i++ {
		p.RunCycle(context.Background())
	}

	videos, err := env.store.Videos.WithoutTranscript(env.limits.AttemptCap, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 0 {
		t.Errorf("expected no selectable videos after the cap, got %d", len(videos))
	}

	// with a raised cap the video reappears, frozen at exactly the old cap
	videos, err = env.store.Videos.WithoutTranscript(env.limits.AttemptCap+1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected the abandoned video under a raised cap, got %d", len(videos))
	}
	if videos[0].FailedAttempts != env.limits.AttemptCap {
		t.Errorf("expected attempts to stop at %d, got %d", env.limits.AttemptCap, videos[0].FailedAttempts)
	}
}

func TestRunCycleSummarizesAndNotifies(t *testing.T) {
	env := newTestEnv()
	channel := env.followChannel(t, "UCchan111", "Channel One")
	env.addSubscriber(t, channel, "alice", "1001", true)
	env.addSubscriber(t, channel, "bob", "1002", true)
	env.addSubscriber(t, channel, "carol", "", true) // no chat linked
	env.metadata.videos[channel.YoutubeID] = []fetch.VideoMeta{meta("vidok000001", "Has Captions")}
	env.transcript.results["vidok000001"] = transcriptResult{text: "the transcript", language: "en"}
	p := env.pipeline()

	run := p.RunCycle(context.Background())

	if !run.Success {
		t.Fatalf("expected success, got errors %v", run.Errors)
	}
	if run.VideosProcessed != 1 {
		t.Errorf("expected 1 video processed, got %d", run.VideosProcessed)
	}

	items, err := env.store.Queue.Pending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 queued notifications, got %d", len(items))
	}
	for _, item := range items {
		if !strings.Contains(item.Message, "Has Captions") {
			t.Errorf("message missing title: %q", item.Message)
		}
		if !strings.Contains(item.Message, "Channel: Channel One") {
			t.Errorf("message missing channel: %q", item.Message)
		}
		if !strings.Contains(item.Message, "vidok000001") {
			t.Errorf("message missing links: %q", item.Message)
		}
	}

	// nothing pending anymore, next cycle is a no-op
	run = p.RunCycle(context.Background())
	if run.VideosProcessed != 0 {
		t.Errorf("expected no reprocessing, got %d", run.VideosProcessed)
	}
	if env.summarizer.calls != 1 {
		t.Errorf("expected exactly one summarizer call, got %d", env.summarizer.calls)
	}
}

func TestRunCycleEnqueueFailureIsIsolated(t *testing.T) {
	env := newTestEnv()
	channel := env.followChannel(t, "UCchan111", "Channel One")
	env.addSubscriber(t, channel, "alice", "1001", true)
	env.addSubscriber(t, channel, "bob", "1002", true)
	env.metadata.videos[channel.YoutubeID] = []fetch.VideoMeta{meta("vidok000001", "Has Captions")}
	env.transcript.results["vidok000001"] = transcriptResult{text: "the transcript", language: "en"}
	baseQueue := env.store.Queue
	env.store.Queue = &failingQueue{NotificationQueue: baseQueue, failFor: map[string]bool{"1001": true}}
	p := env.pipeline()

	run := p.RunCycle(context.Background())

	if run.Success {
		t.Error("expected run to be marked unsuccessful")
	}
	if run.VideosProcessed != 1 {
		t.Errorf("summary should still count as processed, got %d", run.VideosProcessed)
	}
	items, err := baseQueue.Pending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ChatID != "1002" {
		t.Errorf("expected only bob's notification queued, got %v", items)
	}
	found := false
	for _, msg := range run.Errors {
		if strings.HasPrefix(msg, "queue notification for alice") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an enqueue error for alice, got %v", run.Errors)
	}
}

func TestRunCycleSummarizerFailureLeavesWorkPending(t *testing.T) {
	env := newTestEnv()
	channel := env.followChannel(t, "UCchan111", "Channel One")
	env.metadata.videos[channel.YoutubeID] = []fetch.VideoMeta{meta("vidok000001", "Has Captions")}
	env.transcript.results["vidok000001"] = transcriptResult{text: "the transcript", language: "en"}
	env.summarizer.err = errors.New("model overloaded")
	p := env.pipeline()

	run := p.RunCycle(context.Background())

	if run.Success {
		t.Error("expected run to be marked unsuccessful")
	}
	if run.VideosProcessed != 0 {
		t.Errorf("expected no videos processed, got %d", run.VideosProcessed)
	}
	if !p.Backlog() {
		t.Error("expected the video to remain pending for the next cycle")
	}

	// the next cycle picks it up again once the model recovers
	env.summarizer.err = nil
	run = p.RunCycle(context.Background())
	if !run.Success {
		t.Fatalf("expected success, got errors %v", run.Errors)
	}
	if run.VideosProcessed != 1 {
		t.Errorf("expected retry to process the video, got %d", run.VideosProcessed)
	}
}

func TestRunCyclePanicBecomesFatalError(t *testing.T) {
	env := newTestEnv()
	env.followChannel(t, "UCchan111", "Channel One")
	env.metadata.panics = true
	p := env.pipeline()

	run := p.RunCycle(context.Background())

	if run.Success {
		t.Error("expected run to be marked unsuccessful")
	}
	if len(run.Errors) != 1 || !strings.HasPrefix(run.Errors[0], "fatal error in run cycle:") {
		t.Errorf("expected a single fatal error, got %v", run.Errors)
	}
	runs, err := env.store.Runs.FindRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("expected the run to be recorded despite the fault, got %d records", len(runs))
	}
}

func TestRunCycleTruncatesTranscript(t *testing.T) {
	env := newTestEnv()
	channel := env.followChannel(t, "UCchan111", "Channel One")
	env.metadata.videos[channel.YoutubeID] = []fetch.VideoMeta{meta("vidok000001", "Long One")}
	env.transcript.results["vidok000001"] = transcriptResult{text: strings.Repeat("a", 200), language: "en"}
	env.limits.TranscriptBudget = 50
	p := env.pipeline()

	run := p.RunCycle(context.Background())

	if !run.Success {
		t.Fatalf("expected success, got errors %v", run.Errors)
	}
	want := strings.Repeat("a", 50) + "... [truncated]"
	if env.summarizer.lastText != want {
		t.Errorf("expected truncated transcript %q, got %q", want, env.summarizer.lastText)
	}
}

func TestTruncateTranscript(t *testing.T) {
	for _, tc := range []struct {
		name   string
		text   string
		budget int
		want   string
	}{
		{name: "fits", text: "short", budget: 100, want: "short"},
		{name: "exact", text: "12345", budget: 5, want: "12345"},
		{name: "over", text: "1234567890", budget: 5, want: "12345... [truncated]"},
		{name: "unlimited", text: "anything", budget: 0, want: "anything"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := truncateTranscript(tc.text, tc.budget); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBacklog(t *testing.T) {
	env := newTestEnv()
	p := env.pipeline()
	if p.Backlog() {
		t.Error("empty store should have no backlog")
	}

	channel := env.followChannel(t, "UCchan111", "Channel One")
	video := model.Video{ID: uuid.New(), YoutubeID: "vidok000001", ChannelID: channel.ID, Title: "Waiting"}
	if _, err := env.store.Videos.CreateIfAbsent(video); err != nil {
		t.Fatal(err)
	}
	if err := env.store.Transcripts.Create(model.Transcript{ID: uuid.New(), VideoID: video.ID, Text: "text"}); err != nil {
		t.Fatal(err)
	}

	if !p.Backlog() {
		t.Error("video with transcript and no summary should count as backlog")
	}
}
