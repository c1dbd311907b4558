package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// tables lists the schema with dialect-specific tokens left as placeholders:
// {{pk}} for the auto id column, {{ts}} for timestamps, {{real}} for floats.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		profile_image TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id {{pk}},
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'General',
		color TEXT NOT NULL DEFAULT '#8b5cf6',
		description TEXT NOT NULL DEFAULT '',
		target_hours {{real}} NOT NULL DEFAULT 0,
		priority TEXT NOT NULL DEFAULT 'medium',
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subjects_user ON subjects(user_id)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id {{pk}},
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		deadline {{ts}} NULL,
		priority TEXT NOT NULL DEFAULT 'medium',
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at {{ts}} NULL,
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, completed)`,
	`CREATE TABLE IF NOT EXISTS study_sessions (
		id {{pk}},
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		subject TEXT NOT NULL DEFAULT 'Unspecified',
		task TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL,
		occurred_at {{ts}} NOT NULL,
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_study_sessions_user ON study_sessions(user_id, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS goals (
		id {{pk}},
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		target {{real}} NOT NULL,
		current {{real}} NOT NULL DEFAULT 0,
		unit TEXT NOT NULL,
		subject TEXT NULL,
		deadline {{ts}} NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at {{ts}} NULL,
		priority TEXT NOT NULL DEFAULT 'medium',
		category TEXT NOT NULL DEFAULT 'General',
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id, completed)`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		id {{pk}},
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		topic TEXT NOT NULL,
		questions TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		id {{pk}},
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT 'trophy',
		category TEXT NOT NULL,
		criteria_type TEXT NOT NULL,
		criteria_value {{real}} NOT NULL,
		unlocked BOOLEAN NOT NULL DEFAULT FALSE,
		unlocked_at {{ts}} NULL,
		progress {{real}} NOT NULL DEFAULT 0,
		rarity TEXT NOT NULL DEFAULT 'common',
		points INTEGER NOT NULL DEFAULT 10,
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_events (
		id {{pk}},
		event_name TEXT NOT NULL,
		event_time {{ts}} NOT NULL,
		user_id INTEGER NOT NULL,
		session_id TEXT NULL,
		platform TEXT NOT NULL DEFAULT 'unknown',
		app_version TEXT NOT NULL DEFAULT '',
		device_locale TEXT NULL,
		source_event_key TEXT NULL UNIQUE,
		properties TEXT NOT NULL DEFAULT '{}'
	)`,
}

// Migrate creates missing tables. It is idempotent and safe to run on every start.
func Migrate(ctx context.Context, dbx *sql.DB, driver string) error {
	r := dialect(driver)
	for i, stmt := range tables {
		if _, err := dbx.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

func dialect(driver string) *strings.Replacer {
	if driver == DriverSQLite {
		return strings.NewReplacer(
			"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{ts}}", "DATETIME",
			"{{real}}", "REAL",
		)
	}
	return strings.NewReplacer(
		"{{pk}}", "SERIAL PRIMARY KEY",
		"{{ts}}", "TIMESTAMPTZ",
		"{{real}}", "DOUBLE PRECISION",
	)
}
