package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ytsum/storage"
)

// MessageSender delivers one rendered message to a chat address.
type MessageSender interface {
	Send(chatID, message string) error
}

// Telegram sends through the Bot API.
type Telegram struct {
	bot *tgbotapi.BotAPI
}

func NewTelegram(token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{bot: bot}, nil
}

func (t *Telegram) Send(chatID, message string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(id, message)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send message to %s: %w", chatID, err)
	}

	return nil
}

// Worker drains the notification queue on an interval. The pipeline only
// produces queue items; this is the single consumer that terminalizes them.
type Worker struct {
	queue    storage.NotificationQueue
	sender   MessageSender
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewWorker(queue storage.NotificationQueue, sender MessageSender, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		sender:   sender,
		interval: interval,
		batch:    50,
		logger:   logger,
	}
}

func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("notification worker started", slog.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopped")
			return
		case <-ticker.C:
			w.DeliverPending()
		}
	}
}

// DeliverPending sends everything currently pending, one item at a time. A
// failed send bumps the item's retry count; at max retries the queue marks it
// failed for good.
func (w *Worker) DeliverPending() {
	items, err := w.queue.Pending(w.batch)
	if err != nil {
		w.logger.Error("failed to read notification queue", slog.String("error", err.Error()))
		return
	}

	for _, item := range items {
		if err := w.sender.Send(item.ChatID, item.Message); err != nil {
			w.logger.Error("failed to deliver notification",
				slog.String("chat", item.ChatID),
				slog.String("error", err.Error()))
			if err := w.queue.MarkFailed(item.ID, err.Error()); err != nil {
				w.logger.Error("failed to update queue item", slog.String("error", err.Error()))
			}
			continue
		}
		if err := w.queue.MarkSent(item.ID); err != nil {
			w.logger.Error("failed to update queue item", slog.String("error", err.Error()))
			continue
		}
		w.logger.Info("notification delivered", slog.String("chat", item.ChatID))
	}
}
