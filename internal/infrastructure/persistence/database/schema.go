package database

import (
	"context"
	"fmt"
)

// schema holds the engine's table definitions in creation order.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS popups (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 0,
		total_steps INTEGER NOT NULL,
		trigger_config TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS popup_steps (
		id TEXT PRIMARY KEY,
		popup_id TEXT NOT NULL,
		step_number INTEGER NOT NULL,
		step_type TEXT NOT NULL,
		content TEXT NOT NULL,
		FOREIGN KEY (popup_id) REFERENCES popups(id) ON DELETE CASCADE,
		UNIQUE (popup_id, step_number)
	)`,
	`CREATE TABLE IF NOT EXISTS customer_sessions (
		session_token TEXT PRIMARY KEY,
		popup_id TEXT NOT NULL,
		current_step INTEGER NOT NULL,
		total_steps INTEGER NOT NULL,
		responses TEXT NOT NULL DEFAULT '{}',
		discount_code TEXT,
		completed_at TEXT,
		page_url TEXT,
		user_agent TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS collected_emails (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		popup_id TEXT,
		session_token TEXT,
		responses_snapshot TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS step_view_events (
		id TEXT PRIMARY KEY,
		popup_id TEXT NOT NULL,
		session_token TEXT,
		step_number INTEGER NOT NULL,
		step_type TEXT,
		created_at TEXT NOT NULL
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_popups_active ON popups(is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_steps_popup ON popup_steps(popup_id, step_number)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON customer_sessions(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_email ON collected_emails(email)`,
	`CREATE INDEX IF NOT EXISTS idx_events_popup ON step_view_events(popup_id, step_number)`,
}

// EnsureSchema creates all engine tables and indexes if missing.
func EnsureSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
