package process

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"ytsum/model"
)

func TestSchedulerRunsImmediatelyOnBacklog(t *testing.T) {
	env := newTestEnv()
	channel := env.followChannel(t, "UCchan111", "Channel One")
	video := model.Video{ID: uuid.New(), YoutubeID: "vidok000001", ChannelID: channel.ID, Title: "Waiting"}
	if _, err := env.store.Videos.CreateIfAbsent(video); err != nil {
		t.Fatal(err)
	}
	if err := env.store.Transcripts.Create(model.Transcript{ID: uuid.New(), VideoID: video.ID, Text: "text"}); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(env.pipeline(), SchedulerConfig{
		Interval: time.Hour,
		Tick:     time.Millisecond,
		Cooldown: time.Hour,
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		runs, err := env.store.Runs.FindRecent(1)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduler never ran the backlogged cycle")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}

func TestSchedulerWaitsWithoutBacklog(t *testing.T) {
	env := newTestEnv()
	s := NewScheduler(env.pipeline(), SchedulerConfig{
		Interval: time.Hour,
		Tick:     time.Millisecond,
		Cooldown: time.Hour,
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}

	runs, err := env.store.Runs.FindRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs before the first interval, got %d", len(runs))
	}
}
