package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The alias primary key and the token_id unique constraint are load-bearing:
// concurrent claims of the same alias or token key must be rejected by the
// store, not by application-level checks.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS access_tokens (
		id BIGSERIAL PRIMARY KEY,
		token_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		public BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		ordering BIGSERIAL,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		user_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		state_key TEXT,
		content JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS room_aliases (
		alias TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		user_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS room_memberships (
		event_id TEXT PRIMARY KEY,
		ordering BIGSERIAL,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		user_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		membership TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_room_memberships_current
		ON room_memberships (room_id, user_id, ordering DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_access_tokens_user ON access_tokens (user_id)`,
}

// Migrate applies the schema at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
