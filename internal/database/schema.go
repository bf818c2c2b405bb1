package database

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP,
		total_active_time_ms INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		display_mode TEXT NOT NULL DEFAULT 'wide',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		interaction_type TEXT NOT NULL,
		button_key TEXT,
		layer INTEGER,
		execution_time_ms INTEGER NOT NULL DEFAULT 0,
		total_boxes INTEGER NOT NULL DEFAULT 0,
		degradation_assignments TEXT,
		severity_level TEXT NOT NULL DEFAULT 'medium',
		display_mode TEXT NOT NULL DEFAULT 'wide',
		session_active_time_ms INTEGER NOT NULL DEFAULT 0,
		break_mode_active BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	)`,
	`CREATE TABLE IF NOT EXISTS degradation_counts (
		interaction_id INTEGER NOT NULL,
		degradation_type TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (interaction_id) REFERENCES interactions(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS metrics_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		metric_type TEXT NOT NULL,
		metric_data TEXT NOT NULL,
		last_updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS system_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		log_level TEXT NOT NULL,
		component TEXT NOT NULL,
		message TEXT NOT NULL,
		error_details TEXT,
		resolved BOOLEAN NOT NULL DEFAULT 0
	)`,

	`CREATE INDEX IF NOT EXISTS idx_interactions_session_time ON interactions(session_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_type ON interactions(interaction_type)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_session ON metrics_cache(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON system_logs(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_degradation_interaction ON degradation_counts(interaction_id)`,

	// Backs the upsert: at most one cached row per (session, metric kind).
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_metrics_session_type ON metrics_cache(session_id, metric_type)`,
}

// Migrate creates all tables and indexes. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
