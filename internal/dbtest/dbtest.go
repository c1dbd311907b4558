// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"studyflow-backend/internal/db"
)

// New returns a fresh migrated database closed at test cleanup.
func New(t testing.TB) *sql.DB {
	t.Helper()

	dbx, err := db.Connect(db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = dbx.Close() })

	if err := db.Migrate(context.Background(), dbx, db.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return dbx
}

// User inserts a user row with a throwaway password hash and returns its id.
func User(t testing.TB, dbx *sql.DB, username, role string) int {
	t.Helper()

	if role == "" {
		role = "user"
	}
	var id int
	err := dbx.QueryRow(`
		INSERT INTO users (username, email, password, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, username, username+"@example.com", "x", role, time.Now().UTC()).Scan(&id)
	if err != nil {
		t.Fatalf("insert user %q: %v", username, err)
	}
	return id
}
