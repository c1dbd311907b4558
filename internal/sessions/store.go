package sessions

import (
	"context"
	"database/sql"
	"time"

	"studyflow-backend/internal/validate"
)

type Session struct {
	ID              int       `json:"id"`
	UserID          int       `json:"userId"`
	Subject         string    `json:"subject"`
	Task            string    `json:"task"`
	DurationMinutes int       `json:"duration"`
	OccurredAt      time.Time `json:"timestamp"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Store struct {
	DB *sql.DB
}

const sessionColumns = `id, user_id, subject, task, duration_minutes, occurred_at, created_at`

// Create records a session. A zero OccurredAt means now.
func (s *Store) Create(ctx context.Context, sess Session) (Session, error) {
	now := time.Now().UTC()
	sess.Subject = validate.OrDefault(sess.Subject, "Unspecified")
	if sess.OccurredAt.IsZero() {
		sess.OccurredAt = now
	}
	sess.OccurredAt = sess.OccurredAt.UTC()
	sess.CreatedAt = now

	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO study_sessions (user_id, subject, task, duration_minutes, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, sess.UserID, sess.Subject, sess.Task, sess.DurationMinutes, sess.OccurredAt, sess.CreatedAt).Scan(&sess.ID)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// List returns the user's sessions newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, userID, limit int) ([]Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM study_sessions WHERE user_id=$1 ORDER BY occurred_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.query(ctx, q, args...)
}

// Since returns sessions that occurred at or after from, oldest first.
func (s *Store) Since(ctx context.Context, userID int, from time.Time) ([]Session, error) {
	return s.query(ctx, `
		SELECT `+sessionColumns+` FROM study_sessions
		WHERE user_id=$1 AND occurred_at >= $2
		ORDER BY occurred_at, id
	`, userID, from.UTC())
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Session, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Subject, &sess.Task, &sess.DurationMinutes, &sess.OccurredAt, &sess.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
