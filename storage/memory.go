package storage

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ytsum/model"
)

// Memory is an in-process implementation of every repository, used in tests
// and as a stand-in store. All repositories share one lock.
type Memory struct {
	mu            sync.Mutex
	channels      []model.Channel
	subscribers   []model.Subscriber
	subscriptions map[uuid.UUID]map[uuid.UUID]bool // channel -> subscribers
	videos        []model.Video
	transcripts   map[uuid.UUID]model.Transcript // by video
	summaries     map[uuid.UUID]model.Summary    // by video
	runs          []model.RunHistory
	queue         []model.QueueItem
}

func NewMemory() *Memory {
	return &Memory{
		subscriptions: map[uuid.UUID]map[uuid.UUID]bool{},
		transcripts:   map[uuid.UUID]model.Transcript{},
		summaries:     map[uuid.UUID]model.Summary{},
	}
}

type MemoryChannelRepository struct{ mem *Memory }

func NewMemoryChannelRepository(mem *Memory) *MemoryChannelRepository {
	return &MemoryChannelRepository{mem: mem}
}

func (r *MemoryChannelRepository) FindAll() ([]model.Channel, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	return append([]model.Channel{}, r.mem.channels...), nil
}

func (r *MemoryChannelRepository) FindByYoutubeID(ytID model.YoutubeChannelID) (model.Channel, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	return r.mem.findChannel(ytID)
}

func (m *Memory) findChannel(ytID model.YoutubeChannelID) (model.Channel, error) {
	for _, channel := range m.channels {
		if channel.YoutubeID == ytID {
			return channel, nil
		}
	}

	return model.Channel{}, ErrNotFound
}

func (r *MemoryChannelRepository) SetLastChecked(id uuid.UUID, t time.Time) error {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	for i, channel := range r.mem.channels {
		if channel.ID == id {
			r.mem.channels[i].LastChecked = t
			return nil
		}
	}

	return ErrNotFound
}

func (r *MemoryChannelRepository) Follow(subscriberID uuid.UUID, channel model.Channel) (model.Channel, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	stored, err := r.mem.findChannel(channel.YoutubeID)
	if err != nil {
		stored = channel
		r.mem.channels = append(r.mem.channels, stored)
	}
	if r.mem.subscriptions[stored.ID] == nil {
		r.mem.subscriptions[stored.ID] = map[uuid.UUID]bool{}
	}
	r.mem.subscriptions[stored.ID][subscriberID] = true

	return stored, nil
}

func (r *MemoryChannelRepository) Unfollow(subscriberID uuid.UUID, ytID model.YoutubeChannelID) error {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	channel, err := r.mem.findChannel(ytID)
	if err != nil {
		return err
	}
	if !r.mem.subscriptions[channel.ID][subscriberID] {
		return ErrNotFound
	}
	delete(r.mem.subscriptions[channel.ID], subscriberID)

	if len(r.mem.subscriptions[channel.ID]) > 0 {
		return nil
	}

	// last subscriber left, remove channel and cascade to videos
	delete(r.mem.subscriptions, channel.ID)
	channels := r.mem.channels[:0]
	for _, c := range r.mem.channels {
		if c.ID != channel.ID {
			channels = append(channels, c)
		}
	}
	r.mem.channels = channels
	videos := r.mem.videos[:0]
	for _, v := range r.mem.videos {
		if v.ChannelID != channel.ID {
			videos = append(videos, v)
			continue
		}
		delete(r.mem.transcripts, v.ID)
		delete(r.mem.summaries, v.ID)
	}
	r.mem.videos = videos

	return nil
}

type MemorySubscriberRepository struct{ mem *Memory }

func NewMemorySubscriberRepository(mem *Memory) *MemorySubscriberRepository {
	return &MemorySubscriberRepository{mem: mem}
}

func (r *MemorySubscriberRepository) Create(sub model.Subscriber) error {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	r.mem.subscribers = append(r.mem.subscribers, sub)

	return nil
}

func (r *MemorySubscriberRepository) FindByUsername(username string) (model.Subscriber, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	for _, sub := range r.mem.subscribers {
		if sub.Username == username {
			return sub, nil
		}
	}

	return model.Subscriber{}, ErrNotFound
}

func (r *MemorySubscriberRepository) Notifiable(channelID uuid.UUID) ([]model.Subscriber, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	subs := []model.Subscriber{}
	for _, sub := range r.mem.subscribers {
		if r.mem.subscriptions[channelID][sub.ID] && sub.Notifiable() {
			subs = append(subs, sub)
		}
	}

	return subs, nil
}

type MemoryVideoRepository struct{ mem *Memory }

func NewMemoryVideoRepository(mem *Memory) *MemoryVideoRepository {
	return &MemoryVideoRepository{mem: mem}
}

func (r *MemoryVideoRepository) CreateIfAbsent(video model.Video) (bool, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	for _, v := range r.mem.videos {
		if v.YoutubeID == video.YoutubeID {
			return false, nil
		}
	}
	r.mem.videos = append(r.mem.videos, video)

	return true, nil
}

func (r *MemoryVideoRepository) WithoutTranscript(attemptCap, limit int) ([]model.Video, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	videos := []model.Video{}
	for _, v := range r.mem.videos {
		if len(videos) >= limit {
			break
		}
		if _, ok := r.mem.transcripts[v.ID]; ok {
			continue
		}
		if v.FailedAttempts >= attemptCap {
			continue
		}
		videos = append(videos, v)
	}

	return videos, nil
}

func (r *MemoryVideoRepository) IncrementFailedAttempts(id uuid.UUID) (int, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	for i, v := range r.mem.videos {
		if v.ID == id {
			r.mem.videos[i].FailedAttempts++
			return r.mem.videos[i].FailedAttempts, nil
		}
	}

	return 0, ErrNotFound
}

func (r *MemoryVideoRepository) PendingSummaries(limit int) ([]model.PendingSummary, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	pending := []model.PendingSummary{}
	for _, v := range r.mem.videos {
		if len(pending) >= limit {
			break
		}
		transcript, ok := r.mem.transcripts[v.ID]
		if !ok {
			continue
		}
		if _, ok := r.mem.summaries[v.ID]; ok {
			continue
		}
		var channelName string
		for _, c := range r.mem.channels {
			if c.ID == v.ChannelID {
				channelName = c.Name
			}
		}
		pending = append(pending, model.PendingSummary{
			Video:          v,
			TranscriptText: transcript.Text,
			ChannelName:    channelName,
		})
	}

	return pending, nil
}

func (r *MemoryVideoRepository) Summarized(limit int) ([]model.SummarizedVideo, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	videos := []model.SummarizedVideo{}
	for i := len(r.mem.videos) - 1; i >= 0; i-- {
		v := r.mem.videos[i]
		if len(videos) >= limit {
			break
		}
		summary, ok := r.mem.summaries[v.ID]
		if !ok {
			continue
		}
		var channelName string
		for _, c := range r.mem.channels {
			if c.ID == v.ChannelID {
				channelName = c.Name
			}
		}
		videos = append(videos, model.SummarizedVideo{
			Video:       v,
			ChannelName: channelName,
			Summary:     summary,
		})
	}

	return videos, nil
}

type MemoryTranscriptRepository struct{ mem *Memory }

func NewMemoryTranscriptRepository(mem *Memory) *MemoryTranscriptRepository {
	return &MemoryTranscriptRepository{mem: mem}
}

func (r *MemoryTranscriptRepository) Create(transcript model.Transcript) error {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	r.mem.transcripts[transcript.VideoID] = transcript

	return nil
}

type MemorySummaryRepository struct{ mem *Memory }

func NewMemorySummaryRepository(mem *Memory) *MemorySummaryRepository {
	return &MemorySummaryRepository{mem: mem}
}

func (r *MemorySummaryRepository) Create(summary model.Summary) error {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	r.mem.summaries[summary.VideoID] = summary

	return nil
}

type MemoryRunHistoryRepository struct{ mem *Memory }

func NewMemoryRunHistoryRepository(mem *Memory) *MemoryRunHistoryRepository {
	return &MemoryRunHistoryRepository{mem: mem}
}

func (r *MemoryRunHistoryRepository) Append(run model.RunHistory) error {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	r.mem.runs = append(r.mem.runs, run)

	return nil
}

func (r *MemoryRunHistoryRepository) FindRecent(limit int) ([]model.RunHistory, error) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	runs := []model.RunHistory{}
	for i := len(r.mem.runs) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, r.mem.runs[i])
	}

	return runs, nil
}

type MemoryNotificationQueue struct{ mem *Memory }

func NewMemoryNotificationQueue(mem *Memory) *MemoryNotificationQueue {
	return &MemoryNotificationQueue{mem: mem}
}

func (q *MemoryNotificationQueue) Enqueue(item model.QueueItem) error {
	q.mem.mu.Lock()
	defer q.mem.mu.Unlock()

	item.Status = model.QueueStatusPending
	q.mem.queue = append(q.mem.queue, item)

	return nil
}

func (q *MemoryNotificationQueue) Pending(limit int) ([]model.QueueItem, error) {
	q.mem.mu.Lock()
	defer q.mem.mu.Unlock()

	items := []model.QueueItem{}
	for _, item := range q.mem.queue {
		if len(items) >= limit {
			break
		}
		if item.Status == model.QueueStatusPending && item.RetryCount < item.MaxRetries {
			items = append(items, item)
		}
	}

	return items, nil
}

func (q *MemoryNotificationQueue) MarkSent(id uuid.UUID) error {
	q.mem.mu.Lock()
	defer q.mem.mu.Unlock()

	for i, item := range q.mem.queue {
		if item.ID == id {
			q.mem.queue[i].Status = model.QueueStatusSent
			q.mem.queue[i].SentAt = time.Now()
			return nil
		}
	}

	return ErrNotFound
}

func (q *MemoryNotificationQueue) MarkFailed(id uuid.UUID, errMsg string) error {
	q.mem.mu.Lock()
	defer q.mem.mu.Unlock()

	for i, item := range q.mem.queue {
		if item.ID == id {
			q.mem.queue[i].RetryCount++
			q.mem.queue[i].ErrorMessage = errMsg
			if q.mem.queue[i].RetryCount >= q.mem.queue[i].MaxRetries {
				q.mem.queue[i].Status = model.QueueStatusFailed
			}
			return nil
		}
	}

	return ErrNotFound
}

var _ ChannelRepository = (*MemoryChannelRepository)(nil)
var _ SubscriberRepository = (*MemorySubscriberRepository)(nil)
var _ VideoRepository = (*MemoryVideoRepository)(nil)
var _ TranscriptRepository = (*MemoryTranscriptRepository)(nil)
var _ SummaryRepository = (*MemorySummaryRepository)(nil)
var _ RunHistoryRepository = (*MemoryRunHistoryRepository)(nil)
var _ NotificationQueue = (*MemoryNotificationQueue)(nil)
