package storage

var pgMigration = []string{
	`CREATE TABLE channel (
id uuid PRIMARY KEY,
youtube_id VARCHAR(255) NOT NULL UNIQUE,
name VARCHAR(255) NOT NULL,
url VARCHAR(255) NOT NULL DEFAULT '',
added_at TIMESTAMPTZ NOT NULL,
last_checked TIMESTAMPTZ
)`,
	`CREATE TABLE subscriber (
id uuid PRIMARY KEY,
username VARCHAR(64) NOT NULL UNIQUE,
telegram_chat_id VARCHAR(64) NOT NULL DEFAULT '',
notifications_enabled BOOLEAN NOT NULL DEFAULT FALSE,
added_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE subscription (
subscriber_id uuid NOT NULL REFERENCES subscriber(id) ON DELETE CASCADE,
channel_id uuid NOT NULL REFERENCES channel(id) ON DELETE CASCADE,
added_at TIMESTAMPTZ NOT NULL,
PRIMARY KEY (subscriber_id, channel_id)
)`,
	`CREATE TABLE video (
id uuid PRIMARY KEY,
youtube_id VARCHAR(255) NOT NULL UNIQUE,
channel_id uuid NOT NULL REFERENCES channel(id) ON DELETE CASCADE,
title VARCHAR(255) NOT NULL,
url VARCHAR(255) NOT NULL,
published_at TIMESTAMPTZ NOT NULL,
duration VARCHAR(64) NOT NULL DEFAULT '',
discovered_at TIMESTAMPTZ NOT NULL,
failed_attempts INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE transcript (
id uuid PRIMARY KEY,
video_id uuid NOT NULL UNIQUE REFERENCES video(id) ON DELETE CASCADE,
transcript_text TEXT NOT NULL,
language VARCHAR(16) NOT NULL DEFAULT '',
fetched_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE summary (
id uuid PRIMARY KEY,
video_id uuid NOT NULL UNIQUE REFERENCES video(id) ON DELETE CASCADE,
summary_text TEXT NOT NULL,
key_points TEXT[] NOT NULL DEFAULT '{}',
model VARCHAR(255) NOT NULL,
created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE run_history (
id uuid PRIMARY KEY,
started_at TIMESTAMPTZ NOT NULL,
videos_found INTEGER NOT NULL DEFAULT 0,
videos_processed INTEGER NOT NULL DEFAULT 0,
errors TEXT[] NOT NULL DEFAULT '{}',
success BOOLEAN NOT NULL DEFAULT TRUE,
duration_seconds INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TYPE queue_status AS ENUM ('pending', 'sent', 'failed')`,
	`CREATE TABLE notification_queue (
id uuid PRIMARY KEY,
subscriber_id uuid REFERENCES subscriber(id) ON DELETE SET NULL,
chat_id VARCHAR(64) NOT NULL,
message TEXT NOT NULL,
status queue_status NOT NULL DEFAULT 'pending',
error_message TEXT NOT NULL DEFAULT '',
retry_count INTEGER NOT NULL DEFAULT 0,
max_retries INTEGER NOT NULL DEFAULT 3,
created_at TIMESTAMPTZ NOT NULL,
sent_at TIMESTAMPTZ
)`,
	`CREATE INDEX video_needs_transcript ON video (discovered_at)
WHERE failed_attempts < 10`,
	`CREATE INDEX queue_pending ON notification_queue (created_at)
WHERE status = 'pending'`,
}
