package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema holds the table definitions in dependency order. Statements
// are idempotent so Migrate can run on every start.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		confirmed     BOOLEAN NOT NULL DEFAULT FALSE,
		confirmed_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS session_tokens (
		id           UUID PRIMARY KEY,
		user_id      UUID NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE,
		access_token TEXT NOT NULL,
		token_type   TEXT NOT NULL DEFAULT 'Bearer',
		expires_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id          UUID PRIMARY KEY,
		owner_id    UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date    DATE,
		done        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (owner_id, title)
	)`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, db *sql.DB) error {
	return ApplyMigrations(ctx, db, Schema...)
}

// ApplyMigrations executes the provided SQL statements in order within
// the given context.
func ApplyMigrations(ctx context.Context, db *sql.DB, statements ...string) error {
	if db == nil {
		return fmt.Errorf("postgres: db is nil")
	}
	for _, stmt := range statements {
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
