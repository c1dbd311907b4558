// Package admin serves the user-management and usage endpoints behind the admin guard.
package admin

import (
	"context"
	"database/sql"
	"time"

	"studyflow-backend/internal/analytics"
)

// EventWindow is how far back the summary counts product events.
const EventWindow = 30 * 24 * time.Hour

type UserUsage struct {
	UserID        int    `json:"userId"`
	Username      string `json:"username"`
	TotalMinutes  int    `json:"totalMinutes"`
	TotalSessions int    `json:"totalSessions"`
}

type Summary struct {
	TotalUsers    int         `json:"totalUsers"`
	TotalMinutes  int         `json:"totalMinutes"`
	TotalSessions int         `json:"totalSessions"`
	PerUser       []UserUsage `json:"perUser"`

	Events []analytics.EventCount `json:"events"`
}

// Usage aggregates study sessions per user across the whole installation,
// plus the product events recorded during the EventWindow before now.
// Users without sessions are counted in TotalUsers but not listed.
func Usage(ctx context.Context, db *sql.DB, now time.Time) (Summary, error) {
	out := Summary{PerUser: []UserUsage{}}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&out.TotalUsers); err != nil {
		return Summary{}, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT s.user_id, COALESCE(u.username, 'Unknown'), SUM(s.duration_minutes), COUNT(*)
		FROM study_sessions s
		LEFT JOIN users u ON u.id = s.user_id
		GROUP BY s.user_id, u.username
		ORDER BY s.user_id
	`)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var u UserUsage
		if err := rows.Scan(&u.UserID, &u.Username, &u.TotalMinutes, &u.TotalSessions); err != nil {
			return Summary{}, err
		}
		out.TotalMinutes += u.TotalMinutes
		out.TotalSessions += u.TotalSessions
		out.PerUser = append(out.PerUser, u)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	out.Events, err = analytics.Counts(ctx, db, now.Add(-EventWindow))
	if err != nil {
		return Summary{}, err
	}
	return out, nil
}
