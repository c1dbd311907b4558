package analytics

import (
	"context"
	"database/sql"
	"time"
)

type EventCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Users int    `json:"users"`
}

// Counts groups events recorded at or after since, most frequent first.
func Counts(ctx context.Context, db *sql.DB, since time.Time) ([]EventCount, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_name, COUNT(*), COUNT(DISTINCT user_id)
		FROM analytics_events
		WHERE event_time >= $1
		GROUP BY event_name
		ORDER BY COUNT(*) DESC, event_name
	`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []EventCount{}
	for rows.Next() {
		var c EventCount
		if err := rows.Scan(&c.Name, &c.Count, &c.Users); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
