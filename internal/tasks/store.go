package tasks

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"studyflow-backend/internal/db"
	"studyflow-backend/internal/validate"
)

type Store struct {
	DB *sql.DB
}

const taskColumns = `id, user_id, title, description, deadline, priority, completed, completed_at, created_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var (
		t                     Task
		deadline, completedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &deadline, &t.Priority, &t.Completed, &completedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, err
	}
	t.Deadline = db.TimePtr(deadline)
	t.CompletedAt = db.TimePtr(completedAt)
	return t, nil
}

// Create inserts t for t.UserID. Priority defaults to medium; a nil deadline stays NULL.
func (s *Store) Create(ctx context.Context, t Task) (Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	t.Priority = validate.OrDefault(t.Priority, "medium")
	t.Completed = false
	t.CompletedAt = nil
	t.CreatedAt = time.Now().UTC()

	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO tasks (user_id, title, description, deadline, priority, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, t.UserID, t.Title, t.Description, db.NullTime(t.Deadline), t.Priority, false, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *Store) Get(ctx context.Context, userID, id int) (Task, error) {
	return scanTask(s.DB.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id=$1 AND user_id=$2`, id, userID))
}

func (s *Store) List(ctx context.Context, userID int) ([]Task, error) {
	return s.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id=$1 ORDER BY id`, userID)
}

// Pending lists incomplete tasks, oldest first.
func (s *Store) Pending(ctx context.Context, userID int) ([]Task, error) {
	return s.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id=$1 AND completed=$2 ORDER BY id`, userID, false)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Task, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update applies p to the user's task. Completing stamps completed_at; reopening clears it.
func (s *Store) Update(ctx context.Context, userID, id int, p Patch) (Task, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return Task{}, err
	}

	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Deadline != nil {
		if *p.Deadline == "" {
			t.Deadline = nil
		} else {
			d, err := validate.ParseDate(*p.Deadline)
			if err != nil {
				return Task{}, err
			}
			t.Deadline = &d
		}
	}
	if p.Priority != nil && *p.Priority != "" {
		t.Priority = *p.Priority
	}
	if p.Completed != nil && *p.Completed != t.Completed {
		t.Completed = *p.Completed
		if t.Completed {
			now := time.Now().UTC()
			t.CompletedAt = &now
		} else {
			t.CompletedAt = nil
		}
	}

	_, err = s.DB.ExecContext(ctx, `
		UPDATE tasks
		SET title=$1, description=$2, deadline=$3, priority=$4, completed=$5, completed_at=$6
		WHERE id=$7 AND user_id=$8
	`, t.Title, t.Description, db.NullTime(t.Deadline), t.Priority, t.Completed, db.NullTime(t.CompletedAt), id, userID)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *Store) Delete(ctx context.Context, userID, id int) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
