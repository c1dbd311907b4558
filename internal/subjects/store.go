package subjects

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"studyflow-backend/internal/validate"
)

type Store struct {
	DB *sql.DB
}

const subjectColumns = `id, user_id, name, category, color, description, target_hours, priority, created_at`

func scanSubject(row interface{ Scan(...any) error }) (Subject, error) {
	var s Subject
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Category, &s.Color, &s.Description, &s.TargetHours, &s.Priority, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Subject{}, ErrNotFound
	}
	return s, err
}

// Create inserts sub for sub.UserID, filling the column defaults.
func (st *Store) Create(ctx context.Context, sub Subject) (Subject, error) {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Category = validate.OrDefault(sub.Category, "General")
	sub.Color = validate.OrDefault(sub.Color, "#8b5cf6")
	sub.Priority = validate.OrDefault(sub.Priority, "medium")
	sub.CreatedAt = time.Now().UTC()

	err := st.DB.QueryRowContext(ctx, `
		INSERT INTO subjects (user_id, name, category, color, description, target_hours, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, sub.UserID, sub.Name, sub.Category, sub.Color, sub.Description, sub.TargetHours, sub.Priority, sub.CreatedAt).Scan(&sub.ID)
	if err != nil {
		return Subject{}, err
	}
	return sub, nil
}

func (st *Store) List(ctx context.Context, userID int) ([]Subject, error) {
	rows, err := st.DB.QueryContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Subject{}
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (st *Store) Get(ctx context.Context, userID, id int) (Subject, error) {
	return scanSubject(st.DB.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE id=$1 AND user_id=$2`, id, userID))
}

// Update overwrites the non-empty fields of p. TargetHours may be set to zero.
func (st *Store) Update(ctx context.Context, userID, id int, p Patch) (Subject, error) {
	s, err := st.Get(ctx, userID, id)
	if err != nil {
		return Subject{}, err
	}

	set := func(dst *string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			*dst = *v
		}
	}
	set(&s.Name, p.Name)
	set(&s.Category, p.Category)
	set(&s.Color, p.Color)
	set(&s.Description, p.Description)
	set(&s.Priority, p.Priority)
	if p.TargetHours != nil {
		s.TargetHours = *p.TargetHours
	}

	_, err = st.DB.ExecContext(ctx, `
		UPDATE subjects
		SET name=$1, category=$2, color=$3, description=$4, target_hours=$5, priority=$6
		WHERE id=$7 AND user_id=$8
	`, s.Name, s.Category, s.Color, s.Description, s.TargetHours, s.Priority, id, userID)
	if err != nil {
		return Subject{}, err
	}
	return s, nil
}

// DeleteByName removes the user's first subject with that name.
func (st *Store) DeleteByName(ctx context.Context, userID int, name string) error {
	var id int
	err := st.DB.QueryRowContext(ctx,
		`SELECT id FROM subjects WHERE user_id=$1 AND name=$2 ORDER BY id LIMIT 1`, userID, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	_, err = st.DB.ExecContext(ctx, `DELETE FROM subjects WHERE id=$1`, id)
	return err
}

// Overview totals session minutes per known subject. Sessions on
// subjects the user no longer has are not counted.
func (st *Store) Overview(ctx context.Context, userID int) (Overview, error) {
	subs, err := st.List(ctx, userID)
	if err != nil {
		return Overview{}, err
	}

	ov := Overview{
		SubjectStats:  map[string]*SubjectStat{},
		CategoryStats: map[string]*CategoryStat{},
	}
	for _, s := range subs {
		ov.SubjectStats[s.Name] = &SubjectStat{
			TargetHours: s.TargetHours,
			Category:    s.Category,
			Color:       s.Color,
			Priority:    s.Priority,
		}
		ov.TotalTargetHours += s.TargetHours
		if ov.CategoryStats[s.Category] == nil {
			ov.CategoryStats[s.Category] = &CategoryStat{}
		}
		ov.CategoryStats[s.Category].Subjects++
	}

	rows, err := st.DB.QueryContext(ctx, `
		SELECT subject, COUNT(*), COALESCE(SUM(duration_minutes), 0)
		FROM study_sessions
		WHERE user_id=$1
		GROUP BY subject
	`, userID)
	if err != nil {
		return Overview{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name           string
			count, minutes int
		)
		if err := rows.Scan(&name, &count, &minutes); err != nil {
			return Overview{}, err
		}
		stat, ok := ov.SubjectStats[name]
		if !ok {
			continue
		}
		stat.Sessions += count
		stat.Time += minutes
		ov.TotalStudyTime += minutes
		ov.CategoryStats[stat.Category].Time += minutes
	}
	if err := rows.Err(); err != nil {
		return Overview{}, err
	}

	if ov.TotalTargetHours > 0 {
		ov.CompletionRate = float64(ov.TotalStudyTime) / (ov.TotalTargetHours * 60) * 100
	}
	return ov, nil
}
