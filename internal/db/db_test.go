package db

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_SQLiteIdempotent(t *testing.T) {
	dbx, err := Connect(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer dbx.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, dbx, DriverSQLite))
	require.NoError(t, Migrate(ctx, dbx, DriverSQLite))

	for _, table := range []string{"users", "subjects", "tasks", "study_sessions", "goals", "quizzes", "achievements", "analytics_events"} {
		var name string
		err := dbx.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=$1`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dbx, err := Connect(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer dbx.Close()
	require.NoError(t, Migrate(context.Background(), dbx, DriverSQLite))

	_, err = dbx.Exec(`INSERT INTO users (username, email, password) VALUES ($1, $2, $3)`, "ana", "ana@example.com", "x")
	require.NoError(t, err)
	_, err = dbx.Exec(`INSERT INTO users (username, email, password) VALUES ($1, $2, $3)`, "ana", "other@example.com", "x")
	require.Error(t, err)

	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}
