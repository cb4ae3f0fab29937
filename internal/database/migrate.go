package database

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version supported by the migrator.
const SchemaVersion = 1

type step struct {
	name string
	sql  string
}

func schema(driver string) []step {
	ts := "TIMESTAMPTZ"
	if driver == DriverSQLite {
		// modernc only decodes time columns declared with a time type.
		ts = "TIMESTAMP"
	}

	return []step{
		{"posts table", `
			CREATE TABLE IF NOT EXISTS posts (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				platform TEXT NOT NULL,
				content_text TEXT NOT NULL,
				media_url TEXT NULL,
				tags TEXT NOT NULL DEFAULT '[]',
				content_pillar TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				suggested_time ` + ts + ` NULL,
				scheduled_time ` + ts + ` NULL,
				posted_at ` + ts + ` NULL,
				platform_post_id TEXT NULL,
				attempt_count INTEGER NOT NULL DEFAULT 0,
				last_error TEXT NOT NULL DEFAULT '',
				claimed_from TEXT NULL,
				claimed_at ` + ts + ` NULL,
				claimed_post_id TEXT NULL,
				version BIGINT NOT NULL DEFAULT 1,
				created_at ` + ts + ` NOT NULL,
				updated_at ` + ts + ` NOT NULL
			)`},
		{"post_events table", `
			CREATE TABLE IF NOT EXISTS post_events (
				id TEXT PRIMARY KEY,
				post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				action TEXT NOT NULL,
				from_status TEXT NOT NULL,
				to_status TEXT NOT NULL,
				attempt INTEGER NOT NULL DEFAULT 0,
				note TEXT NOT NULL DEFAULT '',
				created_at ` + ts + ` NOT NULL
			)`},
		{"settings table", `
			CREATE TABLE IF NOT EXISTS settings (
				user_id TEXT PRIMARY KEY,
				auto_approval_enabled BOOLEAN NOT NULL DEFAULT FALSE,
				auto_approval_platforms TEXT NOT NULL DEFAULT '[]',
				timezone TEXT NOT NULL DEFAULT 'UTC',
				created_at ` + ts + ` NOT NULL,
				updated_at ` + ts + ` NOT NULL
			)`},
		{"idx_posts_status_scheduled", `CREATE INDEX IF NOT EXISTS idx_posts_status_scheduled ON posts(status, scheduled_time)`},
		{"idx_posts_platform_status", `CREATE INDEX IF NOT EXISTS idx_posts_platform_status ON posts(platform, status)`},
		{"idx_posts_user_created", `CREATE INDEX IF NOT EXISTS idx_posts_user_created ON posts(user_id, created_at)`},
		{"idx_post_events_post", `CREATE INDEX IF NOT EXISTS idx_post_events_post ON post_events(post_id, created_at)`},
	}
}

// Migrate ensures the schema exists and is upgraded to SchemaVersion.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range schema(driver) {
		if _, err := tx.ExecContext(ctx, s.sql); err != nil {
			return fmt.Errorf("migrate: create %s: %w", s.name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, SchemaVersion); err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}
