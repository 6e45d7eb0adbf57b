package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ytsum/model"
)

type PostgresRunHistoryRepository struct {
	db *sql.DB
}

func NewPostgresRunHistoryRepository(postgres *Postgres) *PostgresRunHistoryRepository {
	return &PostgresRunHistoryRepository{db: postgres.db}
}

func (r *PostgresRunHistoryRepository) Append(run model.RunHistory) error {
	_, err := r.db.Exec(`
INSERT INTO run_history (id, started_at, videos_found, videos_processed, errors, success, duration_seconds)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.StartedAt, run.VideosFound, run.VideosProcessed,
		pq.Array(run.Errors), run.Success, run.DurationSeconds)

	return err
}

func (r *PostgresRunHistoryRepository) FindRecent(limit int) ([]model.RunHistory, error) {
	rows, err := r.db.Query(`
SELECT id, started_at, videos_found, videos_processed, errors, success, duration_seconds
FROM run_history
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.RunHistory{}
	for rows.Next() {
		var run model.RunHistory
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.VideosFound, &run.VideosProcessed,
			pq.Array(&run.Errors), &run.Success, &run.DurationSeconds); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type PostgresNotificationQueue struct {
	db *sql.DB
}

func NewPostgresNotificationQueue(postgres *Postgres) *PostgresNotificationQueue {
	return &PostgresNotificationQueue{db: postgres.db}
}

func (q *PostgresNotificationQueue) Enqueue(item model.QueueItem) error {
	_, err := q.db.Exec(`
INSERT INTO notification_queue (id, subscriber_id, chat_id, message, status, retry_count, max_retries, created_at)
VALUES ($1, $2, $3, $4, 'pending', 0, $5, $6)`,
		item.ID, item.SubscriberID, item.ChatID, item.Message, item.MaxRetries, item.CreatedAt)

	return err
}

func (q *PostgresNotificationQueue) Pending(limit int) ([]model.QueueItem, error) {
	rows, err := q.db.Query(`
SELECT id, subscriber_id, chat_id, message, status, error_message, retry_count, max_retries, created_at
FROM notification_queue
WHERE status = 'pending'
AND retry_count < max_retries
ORDER BY created_at
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.QueueItem{}
	for rows.Next() {
		var item model.QueueItem
		var subscriberID uuid.NullUUID
		var status string
		if err := rows.Scan(&item.ID, &subscriberID, &item.ChatID, &item.Message, &status,
			&item.ErrorMessage, &item.RetryCount, &item.MaxRetries, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.SubscriberID = subscriberID.UUID
		item.Status = model.QueueItemStatus(status)
		items = append(items, item)
	}

	return items, rows.Err()
}

func (q *PostgresNotificationQueue) MarkSent(id uuid.UUID) error {
	return q.exec(`
UPDATE notification_queue
SET status = 'sent', sent_at = $2
WHERE id = $1`, id, time.Now())
}

func (q *PostgresNotificationQueue) MarkFailed(id uuid.UUID, errMsg string) error {
	return q.exec(`
UPDATE notification_queue
SET retry_count = retry_count + 1,
error_message = $2,
status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed'::queue_status ELSE status END
WHERE id = $1`, id, errMsg)
}

func (q *PostgresNotificationQueue) exec(query string, args ...any) error {
	res, err := q.db.Exec(query, args...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}

	return nil
}

var _ NotificationQueue = (*PostgresNotificationQueue)(nil)
var _ RunHistoryRepository = (*PostgresRunHistoryRepository)(nil)
var _ ChannelRepository = (*PostgresChannelRepository)(nil)
var _ SubscriberRepository = (*PostgresSubscriberRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ TranscriptRepository = (*PostgresTranscriptRepository)(nil)
var _ SummaryRepository = (*PostgresSummaryRepository)(nil)
