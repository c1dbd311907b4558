// Package achievements tracks unlockable milestones computed from study activity.
package achievements

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"studyflow-backend/internal/db"
	"studyflow-backend/internal/sessions"
	"studyflow-backend/internal/validate"
)

var (
	Categories = []string{"study-time", "consistency", "goals", "subjects", "tasks", "special"}
	Criteria   = []string{"total-hours", "sessions-count", "streak-days", "goals-completed", "subjects-mastered", "tasks-completed", "perfect-week"}
	Rarities   = []string{"common", "rare", "epic", "legendary"}
)

type Achievement struct {
	ID            int        `json:"id"`
	UserID        int        `json:"userId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Icon          string     `json:"icon"`
	Category      string     `json:"category"`
	CriteriaType  string     `json:"criteriaType"`
	CriteriaValue float64    `json:"criteriaValue"`
	Unlocked      bool       `json:"unlocked"`
	UnlockedAt    *time.Time `json:"unlockedAt"`
	Progress      float64    `json:"progress"`
	Rarity        string     `json:"rarity"`
	Points        int        `json:"points"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Defaults is the catalog every user starts with.
var Defaults = []Achievement{
	{Title: "First Steps", Description: "Log your first study session", Icon: "footprints", Category: "study-time", CriteriaType: "sessions-count", CriteriaValue: 1},
	{Title: "Ten Hours In", Description: "Study for 10 hours in total", Icon: "clock", Category: "study-time", CriteriaType: "total-hours", CriteriaValue: 10, Rarity: "rare", Points: 25},
	{Title: "Centurion", Description: "Study for 100 hours in total", Icon: "crown", Category: "study-time", CriteriaType: "total-hours", CriteriaValue: 100, Rarity: "legendary", Points: 100},
	{Title: "On a Roll", Description: "Study 7 days in a row", Icon: "flame", Category: "consistency", CriteriaType: "streak-days", CriteriaValue: 7, Rarity: "epic", Points: 50},
	{Title: "Perfect Week", Description: "Study every day of the last week", Icon: "calendar", Category: "consistency", CriteriaType: "perfect-week", CriteriaValue: 7, Rarity: "rare", Points: 30},
	{Title: "Goal Getter", Description: "Complete 5 goals", Icon: "target", Category: "goals", CriteriaType: "goals-completed", CriteriaValue: 5, Rarity: "rare", Points: 25},
	{Title: "Subject Master", Description: "Reach the target hours of a subject", Icon: "book", Category: "subjects", CriteriaType: "subjects-mastered", CriteriaValue: 1, Rarity: "epic", Points: 40},
	{Title: "Task Crusher", Description: "Complete 25 tasks", Icon: "check", Category: "tasks", CriteriaType: "tasks-completed", CriteriaValue: 25, Points: 20},
}

type Store struct {
	DB *sql.DB
}

const achievementColumns = `id, user_id, title, description, icon, category, criteria_type, criteria_value,
	unlocked, unlocked_at, progress, rarity, points, created_at`

func (s *Store) Create(ctx context.Context, a Achievement) (Achievement, error) {
	a.Icon = validate.OrDefault(a.Icon, "trophy")
	a.Rarity = validate.OrDefault(a.Rarity, "common")
	if a.Points == 0 {
		a.Points = 10
	}
	a.Unlocked = false
	a.UnlockedAt = nil
	a.Progress = 0
	a.CreatedAt = time.Now().UTC()

	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO achievements (user_id, title, description, icon, category, criteria_type, criteria_value,
			unlocked, progress, rarity, points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, a.UserID, a.Title, a.Description, a.Icon, a.Category, a.CriteriaType, a.CriteriaValue,
		false, 0.0, a.Rarity, a.Points, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return Achievement{}, err
	}
	return a, nil
}

func (s *Store) List(ctx context.Context, userID int) ([]Achievement, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Achievement{}
	for rows.Next() {
		var (
			a          Achievement
			unlockedAt sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &a.Icon, &a.Category, &a.CriteriaType, &a.CriteriaValue,
			&a.Unlocked, &unlockedAt, &a.Progress, &a.Rarity, &a.Points, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UnlockedAt = db.TimePtr(unlockedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// EnsureDefaults seeds the default catalog for a user that has no achievements yet.
func (s *Store) EnsureDefaults(ctx context.Context, userID int) error {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM achievements WHERE user_id=$1`, userID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, a := range Defaults {
		a.UserID = userID
		if _, err := s.Create(ctx, a); err != nil {
			return fmt.Errorf("seed %q: %w", a.Title, err)
		}
	}
	return nil
}

// Metrics are the user totals achievements are measured against.
type Metrics struct {
	TotalHours       float64
	Sessions         int
	CurrentStreak    int
	LongestStreak    int
	DaysLastWeek     int
	GoalsCompleted   int
	SubjectsMastered int
	TasksCompleted   int
}

func (m Metrics) value(criteria string) float64 {
	switch criteria {
	case "total-hours":
		return m.TotalHours
	case "sessions-count":
		return float64(m.Sessions)
	case "streak-days":
		return float64(max(m.CurrentStreak, m.LongestStreak))
	case "perfect-week":
		return float64(m.DaysLastWeek)
	case "goals-completed":
		return float64(m.GoalsCompleted)
	case "subjects-mastered":
		return float64(m.SubjectsMastered)
	case "tasks-completed":
		return float64(m.TasksCompleted)
	}
	return 0
}

// Measure collects Metrics for the user as of now.
func (s *Store) Measure(ctx context.Context, userID int, now time.Time) (Metrics, error) {
	var m Metrics

	all, err := (&sessions.Store{DB: s.DB}).List(ctx, userID, 0)
	if err != nil {
		return m, err
	}
	var minutes int
	weekAgo := now.UTC().AddDate(0, 0, -7)
	var lastWeek []sessions.Session
	for _, sess := range all {
		minutes += sess.DurationMinutes
		if sess.OccurredAt.After(weekAgo) {
			lastWeek = append(lastWeek, sess)
		}
	}
	m.Sessions = len(all)
	m.TotalHours = float64(minutes) / 60
	m.CurrentStreak, m.LongestStreak = sessions.Streaks(sessions.StudyDays(all), now)
	m.DaysLastWeek = len(sessions.StudyDays(lastWeek))

	err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM goals WHERE user_id=$1 AND completed=$2`, userID, true).Scan(&m.GoalsCompleted)
	if err != nil {
		return m, err
	}
	err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE user_id=$1 AND completed=$2`, userID, true).Scan(&m.TasksCompleted)
	if err != nil {
		return m, err
	}
	err = s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subjects s
		WHERE s.user_id=$1 AND s.target_hours > 0
		AND (SELECT COALESCE(SUM(ss.duration_minutes), 0) FROM study_sessions ss
			WHERE ss.user_id = s.user_id AND ss.subject = s.name) >= s.target_hours * 60
	`, userID).Scan(&m.SubjectsMastered)
	return m, err
}

// Evaluate refreshes progress on locked achievements and returns the ones unlocked by this call.
func (s *Store) Evaluate(ctx context.Context, userID int, now time.Time) ([]Achievement, error) {
	if err := s.EnsureDefaults(ctx, userID); err != nil {
		return nil, err
	}
	m, err := s.Measure(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	list, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unlocked []Achievement
	for _, a := range list {
		if a.Unlocked || a.CriteriaValue <= 0 {
			continue
		}
		v := m.value(a.CriteriaType)
		progress := math.Min(v/a.CriteriaValue*100, 100)
		if progress == a.Progress {
			continue
		}

		a.Progress = progress
		if v >= a.CriteriaValue {
			t := now.UTC()
			a.Unlocked = true
			a.UnlockedAt = &t
			unlocked = append(unlocked, a)
		}

		_, err := s.DB.ExecContext(ctx, `
			UPDATE achievements SET progress=$1, unlocked=$2, unlocked_at=$3 WHERE id=$4
		`, a.Progress, a.Unlocked, db.NullTime(a.UnlockedAt), a.ID)
		if err != nil {
			return nil, err
		}
	}
	return unlocked, nil
}
