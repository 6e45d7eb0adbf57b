package storage

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ytsum/model"
)

type PostgresVideoRepository struct {
	db *sql.DB
}

func NewPostgresVideoRepository(postgres *Postgres) *PostgresVideoRepository {
	return &PostgresVideoRepository{db: postgres.db}
}

func (r *PostgresVideoRepository) CreateIfAbsent(video model.Video) (bool, error) {
	// uniqueness lives in the youtube_id constraint, so concurrent inserts
	// of the same external ID cannot produce duplicates
	res, err := r.db.Exec(`
INSERT INTO video (id, youtube_id, channel_id, title, url, published_at, duration, discovered_at, failed_attempts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
ON CONFLICT (youtube_id) DO NOTHING`,
		video.ID, string(video.YoutubeID), video.ChannelID, video.Title, video.URL,
		video.PublishedAt, video.Duration, video.DiscoveredAt)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *PostgresVideoRepository) WithoutTranscript(attemptCap, limit int) ([]model.Video, error) {
	rows, err := r.db.Query(`
SELECT v.id, v.youtube_id, v.channel_id, v.title, v.url, v.published_at, v.duration, v.discovered_at, v.failed_attempts
FROM video v
LEFT JOIN transcript t ON t.video_id = v.id
WHERE t.id IS NULL
AND v.failed_attempts < $1
ORDER BY v.discovered_at
LIMIT $2`, attemptCap, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanVideos(rows)
}

func (r *PostgresVideoRepository) IncrementFailedAttempts(id uuid.UUID) (int, error) {
	row := r.db.QueryRow(`
UPDATE video
SET failed_attempts = failed_attempts + 1
WHERE id = $1
RETURNING failed_attempts`, id)

	var count int
	err := row.Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}

	return count, err
}

func (r *PostgresVideoRepository) PendingSummaries(limit int) ([]model.PendingSummary, error) {
	rows, err := r.db.Query(`
SELECT v.id, v.youtube_id, v.channel_id, v.title, v.url, v.published_at, v.duration, v.discovered_at, v.failed_attempts,
t.transcript_text, c.name
FROM video v
JOIN transcript t ON t.video_id = v.id
JOIN channel c ON c.id = v.channel_id
LEFT JOIN summary s ON s.video_id = v.id
WHERE s.id IS NULL
ORDER BY v.discovered_at
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pending := []model.PendingSummary{}
	for rows.Next() {
		var p model.PendingSummary
		var ytID string
		if err := rows.Scan(&p.ID, &ytID, &p.ChannelID, &p.Title, &p.URL, &p.PublishedAt,
			&p.Duration, &p.DiscoveredAt, &p.FailedAttempts, &p.TranscriptText, &p.ChannelName); err != nil {
			return nil, err
		}
		p.YoutubeID = model.YoutubeVideoID(ytID)
		pending = append(pending, p)
	}

	return pending, rows.Err()
}

func (r *PostgresVideoRepository) Summarized(limit int) ([]model.SummarizedVideo, error) {
	rows, err := r.db.Query(`
SELECT v.id, v.youtube_id, v.channel_id, v.title, v.url, v.published_at, v.duration, v.discovered_at, v.failed_attempts,
c.name, s.id, s.summary_text, s.key_points, s.model, s.created_at
FROM video v
JOIN summary s ON s.video_id = v.id
JOIN channel c ON c.id = v.channel_id
ORDER BY v.published_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []model.SummarizedVideo{}
	for rows.Next() {
		var sv model.SummarizedVideo
		var ytID string
		if err := rows.Scan(&sv.ID, &ytID, &sv.ChannelID, &sv.Title, &sv.URL, &sv.PublishedAt,
			&sv.Duration, &sv.DiscoveredAt, &sv.FailedAttempts, &sv.ChannelName,
			&sv.Summary.ID, &sv.Summary.Text, pq.Array(&sv.Summary.KeyPoints), &sv.Summary.Model, &sv.Summary.CreatedAt); err != nil {
			return nil, err
		}
		sv.YoutubeID = model.YoutubeVideoID(ytID)
		sv.Summary.VideoID = sv.ID
		videos = append(videos, sv)
	}

	return videos, rows.Err()
}

func scanVideos(rows *sql.Rows) ([]model.Video, error) {
	videos := []model.Video{}
	for rows.Next() {
		var video model.Video
		var ytID string
		if err := rows.Scan(&video.ID, &ytID, &video.ChannelID, &video.Title, &video.URL,
			&video.PublishedAt, &video.Duration, &video.DiscoveredAt, &video.FailedAttempts); err != nil {
			return nil, err
		}
		video.YoutubeID = model.YoutubeVideoID(ytID)
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

type PostgresTranscriptRepository struct {
	db *sql.DB
}

func NewPostgresTranscriptRepository(postgres *Postgres) *PostgresTranscriptRepository {
	return &PostgresTranscriptRepository{db: postgres.db}
}

func (r *PostgresTranscriptRepository) Create(transcript model.Transcript) error {
	_, err := r.db.Exec(`
INSERT INTO transcript (id, video_id, transcript_text, language, fetched_at)
VALUES ($1, $2, $3, $4, $5)`,
		transcript.ID, transcript.VideoID, transcript.Text, transcript.Language, transcript.FetchedAt)

	return err
}

type PostgresSummaryRepository struct {
	db *sql.DB
}

func NewPostgresSummaryRepository(postgres *Postgres) *PostgresSummaryRepository {
	return &PostgresSummaryRepository{db: postgres.db}
}

func (r *PostgresSummaryRepository) Create(summary model.Summary) error {
	_, err := r.db.Exec(`
INSERT INTO summary (id, video_id, summary_text, key_points, model, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		summary.ID, summary.VideoID, summary.Text, pq.Array(summary.KeyPoints), summary.Model, summary.CreatedAt)

	return err
}
