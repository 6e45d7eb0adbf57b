package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"ytsum/model"
)

type PostgresChannelRepository struct {
	db *sql.DB
}

func NewPostgresChannelRepository(postgres *Postgres) *PostgresChannelRepository {
	return &PostgresChannelRepository{db: postgres.db}
}

func (r *PostgresChannelRepository) FindAll() ([]model.Channel, error) {
	rows, err := r.db.Query(`
SELECT id, youtube_id, name, url, added_at, last_checked
FROM channel
ORDER BY added_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []model.Channel{}
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}

	return channels, rows.Err()
}

func (r *PostgresChannelRepository) FindByYoutubeID(ytID model.YoutubeChannelID) (model.Channel, error) {
	row := r.db.QueryRow(`
SELECT id, youtube_id, name, url, added_at, last_checked
FROM channel
WHERE youtube_id = $1`, string(ytID))
	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Channel{}, ErrNotFound
	}

	return channel, err
}

func (r *PostgresChannelRepository) SetLastChecked(id uuid.UUID, t time.Time) error {
	_, err := r.db.Exec(`UPDATE channel SET last_checked = $1 WHERE id = $2`, t, id)

	return err
}

func (r *PostgresChannelRepository) Follow(subscriberID uuid.UUID, channel model.Channel) (model.Channel, error) {
	stored, err := r.FindByYoutubeID(channel.YoutubeID)
	switch {
	case errors.Is(err, ErrNotFound):
		stored = channel
		if _, err := r.db.Exec(`
INSERT INTO channel (id, youtube_id, name, url, added_at)
VALUES ($1, $2, $3, $4, $5)`,
			stored.ID, string(stored.YoutubeID), stored.Name, stored.URL, stored.AddedAt); err != nil {
			return model.Channel{}, err
		}
	case err != nil:
		return model.Channel{}, err
	}

	if _, err := r.db.Exec(`
INSERT INTO subscription (subscriber_id, channel_id, added_at)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`, subscriberID, stored.ID, time.Now()); err != nil {
		return model.Channel{}, err
	}

	return stored, nil
}

func (r *PostgresChannelRepository) Unfollow(subscriberID uuid.UUID, ytID model.YoutubeChannelID) error {
	channel, err := r.FindByYoutubeID(ytID)
	if err != nil {
		return err
	}

	res, err := r.db.Exec(`
DELETE FROM subscription
WHERE subscriber_id = $1 AND channel_id = $2`, subscriberID, channel.ID)
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

	// drop the channel, and its videos through the cascade, when the last
	// subscriber is gone
	_, err = r.db.Exec(`
DELETE FROM channel
WHERE id = $1
AND NOT EXISTS (SELECT 1 FROM subscription WHERE channel_id = $1)`, channel.ID)

	return err
}

func scanChannel(row interface{ Scan(...any) error }) (model.Channel, error) {
	var channel model.Channel
	var ytID string
	var lastChecked sql.NullTime
	if err := row.Scan(&channel.ID, &ytID, &channel.Name, &channel.URL, &channel.AddedAt, &lastChecked); err != nil {
		return model.Channel{}, err
	}
	channel.YoutubeID = model.YoutubeChannelID(ytID)
	if lastChecked.Valid {
		channel.LastChecked = lastChecked.Time
	}

	return channel, nil
}

type PostgresSubscriberRepository struct {
	db *sql.DB
}

func NewPostgresSubscriberRepository(postgres *Postgres) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{db: postgres.db}
}

func (r *PostgresSubscriberRepository) Create(sub model.Subscriber) error {
	_, err := r.db.Exec(`
INSERT INTO subscriber (id, username, telegram_chat_id, notifications_enabled, added_at)
VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.Username, sub.TelegramChatID, sub.NotificationsEnabled, sub.AddedAt)

	return err
}

func (r *PostgresSubscriberRepository) FindByUsername(username string) (model.Subscriber, error) {
	row := r.db.QueryRow(`
SELECT id, username, telegram_chat_id, notifications_enabled, added_at
FROM subscriber
WHERE username = $1`, username)

	var sub model.Subscriber
	err := row.Scan(&sub.ID, &sub.Username, &sub.TelegramChatID, &sub.NotificationsEnabled, &sub.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Subscriber{}, ErrNotFound
	}

	return sub, err
}

func (r *PostgresSubscriberRepository) Notifiable(channelID uuid.UUID) ([]model.Subscriber, error) {
	rows, err := r.db.Query(`
SELECT s.id, s.username, s.telegram_chat_id, s.notifications_enabled, s.added_at
FROM subscriber s
JOIN subscription sub ON sub.subscriber_id = s.id
WHERE sub.channel_id = $1
AND s.notifications_enabled
AND s.telegram_chat_id <> ''
ORDER BY s.username`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []model.Subscriber{}
	for rows.Next() {
		var sub model.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Username, &sub.TelegramChatID, &sub.NotificationsEnabled, &sub.AddedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}
