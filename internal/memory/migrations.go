package memory

import (
	"database/sql"
	"fmt"
)

// Schema statements for the durable store. Tables are created idempotently;
// the store is shared across processes, so everything mutation-shaped runs
// inside transactions in longterm.go.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sender_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		name TEXT DEFAULT '',
		company TEXT DEFAULT '',
		tags TEXT DEFAULT '[]',
		history TEXT DEFAULT '[]',
		last_interaction DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_profiles_last_interaction ON sender_profiles(last_interaction);`,

	`CREATE TABLE IF NOT EXISTS action_log (
		id TEXT PRIMARY KEY,
		email_from TEXT NOT NULL,
		action_taken TEXT NOT NULL,
		tool_used TEXT NOT NULL,
		outcome TEXT DEFAULT '',
		metadata TEXT DEFAULT '{}',
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_action_log_from ON action_log(email_from);
	CREATE INDEX IF NOT EXISTS idx_action_log_timestamp ON action_log(timestamp);`,

	`CREATE TABLE IF NOT EXISTS follow_ups (
		id TEXT PRIMARY KEY,
		email_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		due_time DATETIME NOT NULL,
		note TEXT DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'completed', 'cancelled', 'failed')),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_follow_ups_status_due ON follow_ups(status, due_time);
	CREATE INDEX IF NOT EXISTS idx_follow_ups_sender ON follow_ups(sender);`,
}

// initSchema creates the tables and indexes.
func initSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
