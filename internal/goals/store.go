package goals

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"studyflow-backend/internal/db"
	"studyflow-backend/internal/validate"
)

type Store struct {
	DB *sql.DB
}

const goalColumns = `id, user_id, title, description, type, target, current, unit, subject, deadline,
	completed, completed_at, priority, category, created_at`

func scanGoal(row interface{ Scan(...any) error }) (Goal, error) {
	var (
		g                     Goal
		subject               sql.NullString
		deadline, completedAt sql.NullTime
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &g.Type, &g.Target, &g.Current, &g.Unit,
		&subject, &deadline, &g.Completed, &completedAt, &g.Priority, &g.Category, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Goal{}, ErrNotFound
	}
	if err != nil {
		return Goal{}, err
	}
	if subject.Valid {
		g.Subject = &subject.String
	}
	g.Deadline = db.TimePtr(deadline)
	g.CompletedAt = db.TimePtr(completedAt)
	return g, nil
}

// Create inserts g with zero progress. A nil deadline stays NULL.
func (s *Store) Create(ctx context.Context, g Goal) (Goal, error) {
	g.Title = strings.TrimSpace(g.Title)
	g.Type = validate.OrDefault(g.Type, "daily")
	g.Priority = validate.OrDefault(g.Priority, "medium")
	g.Category = validate.OrDefault(g.Category, "General")
	g.Current = 0
	g.Completed = false
	g.CompletedAt = nil
	g.CreatedAt = time.Now().UTC()

	var subject sql.NullString
	if g.Subject != nil && *g.Subject != "" {
		subject = sql.NullString{String: *g.Subject, Valid: true}
	} else {
		g.Subject = nil
	}

	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO goals (user_id, title, description, type, target, current, unit, subject, deadline,
			completed, priority, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, g.UserID, g.Title, g.Description, g.Type, g.Target, 0.0, g.Unit, subject, db.NullTime(g.Deadline),
		false, g.Priority, g.Category, g.CreatedAt).Scan(&g.ID)
	if err != nil {
		return Goal{}, err
	}
	return g, nil
}

func (s *Store) Get(ctx context.Context, userID, id int) (Goal, error) {
	return scanGoal(s.DB.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id=$1 AND user_id=$2`, id, userID))
}

// List returns the user's goals newest first.
func (s *Store) List(ctx context.Context, userID int) ([]Goal, error) {
	return s.query(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
}

// Active returns goals that are not completed and still below target.
func (s *Store) Active(ctx context.Context, userID int) ([]Goal, error) {
	return s.query(ctx, `
		SELECT `+goalColumns+` FROM goals
		WHERE user_id=$1 AND completed=$2 AND current < target
		ORDER BY id
	`, userID, false)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Goal, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Update applies p. Reaching the target marks the goal completed.
func (s *Store) Update(ctx context.Context, userID, id int, p Patch) (Goal, error) {
	g, err := s.Get(ctx, userID, id)
	if err != nil {
		return Goal{}, err
	}

	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		g.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.Target != nil {
		g.Target = *p.Target
	}
	if p.Current != nil {
		g.Current = *p.Current
	}
	if p.Deadline != nil {
		if *p.Deadline == "" {
			g.Deadline = nil
		} else {
			d, err := validate.ParseDate(*p.Deadline)
			if err != nil {
				return Goal{}, err
			}
			g.Deadline = &d
		}
	}
	if p.Priority != nil && *p.Priority != "" {
		g.Priority = *p.Priority
	}
	if p.Category != nil && *p.Category != "" {
		g.Category = *p.Category
	}
	if p.Completed != nil {
		g.Completed = *p.Completed
		if !g.Completed {
			g.CompletedAt = nil
		}
	}
	markCompleted(&g, time.Now().UTC())

	if err := s.save(ctx, g); err != nil {
		return Goal{}, err
	}
	return g, nil
}

func markCompleted(g *Goal, now time.Time) {
	if g.Current >= g.Target && g.Target > 0 {
		g.Completed = true
	}
	if g.Completed && g.CompletedAt == nil {
		g.CompletedAt = &now
	}
}

func (s *Store) save(ctx context.Context, g Goal) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE goals
		SET title=$1, description=$2, target=$3, current=$4, deadline=$5, priority=$6, category=$7,
			completed=$8, completed_at=$9
		WHERE id=$10 AND user_id=$11
	`, g.Title, g.Description, g.Target, g.Current, db.NullTime(g.Deadline), g.Priority, g.Category,
		g.Completed, db.NullTime(g.CompletedAt), g.ID, g.UserID)
	return err
}

func (s *Store) Delete(ctx context.Context, userID, id int) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM goals WHERE id=$1 AND user_id=$2`, id, userID)
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

// RefreshProgress recomputes current for every open goal from the user's
// sessions and completed tasks, capped at target. It returns the goals that changed.
func (s *Store) RefreshProgress(ctx context.Context, userID int, now time.Time) ([]Goal, error) {
	now = now.UTC()
	open, err := s.query(ctx, `
		SELECT `+goalColumns+` FROM goals
		WHERE user_id=$1 AND completed=$2 AND (deadline IS NULL OR deadline >= $3)
		ORDER BY id
	`, userID, false, now)
	if err != nil {
		return nil, err
	}

	var changed []Goal
	for _, g := range open {
		from, to, ok := window(g, now)
		if !ok {
			continue
		}

		var subject string
		if g.Type == "subject-specific" {
			if g.Subject == nil {
				continue
			}
			subject = *g.Subject
		}

		next, ok, err := s.measure(ctx, userID, g.Unit, subject, from, to)
		if err != nil {
			return nil, err
		}
		if !ok || next == g.Current {
			continue
		}

		g.Current = math.Min(next, g.Target)
		markCompleted(&g, now)
		if err := s.save(ctx, g); err != nil {
			return nil, err
		}
		changed = append(changed, g)
	}
	return changed, nil
}

// window is the time range a goal type counts over.
func window(g Goal, now time.Time) (time.Time, time.Time, bool) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch g.Type {
	case "daily":
		return day, day.AddDate(0, 0, 1), true
	case "weekly":
		return day.AddDate(0, 0, -int(now.Weekday())), now, true
	case "monthly":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), now, true
	case "subject-specific", "total-hours":
		return g.CreatedAt, now, true
	}
	return time.Time{}, time.Time{}, false
}

// measure returns the progress value for unit in [from, to].
func (s *Store) measure(ctx context.Context, userID int, unit, subject string, from, to time.Time) (float64, bool, error) {
	switch unit {
	case "hours", "sessions":
		q := `SELECT COUNT(*), COALESCE(SUM(duration_minutes), 0) FROM study_sessions
			WHERE user_id=$1 AND occurred_at >= $2 AND occurred_at <= $3`
		args := []any{userID, from.UTC(), to.UTC()}
		if subject != "" {
			q += ` AND subject=$4`
			args = append(args, subject)
		}

		var count, minutes int
		if err := s.DB.QueryRowContext(ctx, q, args...).Scan(&count, &minutes); err != nil {
			return 0, false, err
		}
		if unit == "hours" {
			return float64(minutes) / 60, true, nil
		}
		return float64(count), true, nil

	case "tasks":
		var n int
		err := s.DB.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM tasks
			WHERE user_id=$1 AND completed=$2 AND completed_at >= $3 AND completed_at <= $4
		`, userID, true, from.UTC(), to.UTC()).Scan(&n)
		if err != nil {
			return 0, false, err
		}
		return float64(n), true, nil
	}
	return 0, false, nil
}

// Stats summarizes the user's goals as of now.
func (s *Store) Stats(ctx context.Context, userID int, now time.Time) (Stats, error) {
	all, err := s.List(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		Total:      len(all),
		ByType:     map[string]*Breakdown{},
		ByCategory: map[string]*Breakdown{},
	}
	for _, g := range all {
		switch {
		case g.Completed:
			st.Completed++
		case g.Deadline != nil && g.Deadline.Before(now):
			st.Overdue++
		default:
			st.Active++
		}

		tally(st.ByType, g.Type, g.Completed)
		tally(st.ByCategory, g.Category, g.Completed)
	}
	if st.Total > 0 {
		st.CompletionRate = float64(st.Completed) / float64(st.Total) * 100
	}
	return st, nil
}

func tally(m map[string]*Breakdown, key string, completed bool) {
	if m[key] == nil {
		m[key] = &Breakdown{}
	}
	m[key].Total++
	if completed {
		m[key].Completed++
	}
}
