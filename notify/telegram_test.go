package notify

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"ytsum/model"
	"ytsum/storage"
)

type fakeSender struct {
	failFor map[string]bool
	sent    []string
}

func (f *fakeSender) Send(chatID, _ string) error {
	if f.failFor[chatID] {
		return errors.New("chat not reachable")
	}
	f.sent = append(f.sent, chatID)

	return nil
}

func newTestWorker(queue storage.NotificationQueue, sender MessageSender) *Worker {
	return NewWorker(queue, sender, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func enqueue(t *testing.T, queue storage.NotificationQueue, chatID string) model.QueueItem {
	t.Helper()
	item := model.QueueItem{
		ID:         uuid.New(),
		ChatID:     chatID,
		Message:    "hello",
		MaxRetries: model.DefaultQueueMaxRetries,
	}
	if err := queue.Enqueue(item); err != nil {
		t.Fatal(err)
	}

	return item
}

func TestDeliverPendingSendsAndMarks(t *testing.T) {
	mem := storage.NewMemory()
	queue := storage.NewMemoryNotificationQueue(mem)
	enqueue(t, queue, "1001")
	enqueue(t, queue, "1002")

	sender := &fakeSender{}
	newTestWorker(queue, sender).DeliverPending()

	if len(sender.sent) != 2 {
		t.Errorf("expected 2 deliveries, got %d", len(sender.sent))
	}
	pending, err := queue.Pending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("expected an empty queue after delivery, got %d items", len(pending))
	}
}

func TestDeliverPendingFailureLeavesItemForRetry(t *testing.T) {
	mem := storage.NewMemory()
	queue := storage.NewMemoryNotificationQueue(mem)
	enqueue(t, queue, "1001")
	enqueue(t, queue, "1002")

	sender := &fakeSender{failFor: map[string]bool{"1001": true}}
	worker := newTestWorker(queue, sender)
	worker.DeliverPending()

	if len(sender.sent) != 1 || sender.sent[0] != "1002" {
		t.Errorf("expected only 1002 delivered, got %v", sender.sent)
	}
	pending, err := queue.Pending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ChatID != "1001" {
		t.Fatalf("expected 1001 still pending, got %v", pending)
	}
	if pending[0].RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", pending[0].RetryCount)
	}

	// once the chat is reachable, the next pass delivers it
	sender.failFor = nil
	worker.DeliverPending()
	pending, err = queue.Pending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("expected the retry to clear the queue, got %d items", len(pending))
	}
}

func TestDeliverPendingGivesUpAfterMaxRetries(t *testing.T) {
	mem := storage.NewMemory()
	queue := storage.NewMemoryNotificationQueue(mem)
	enqueue(t, queue, "1001")

	sender := &fakeSender{failFor: map[string]bool{"1001": true}}
	worker := newTestWorker(queue, sender)
	for i := 0; i < model.DefaultQueueMaxRetries+2; i++ {
		worker.DeliverPending()
	}

	pending, err := queue.Pending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("expected the item terminalized, got %d pending", len(pending))
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected no deliveries, got %v", sender.sent)
	}
}
