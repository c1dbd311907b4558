package goals

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("goal not found")

type Goal struct {
	ID          int        `json:"id"`
	UserID      int        `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Target      float64    `json:"target"`
	Current     float64    `json:"current"`
	Unit        string     `json:"unit"`
	Subject     *string    `json:"subject"`
	Deadline    *time.Time `json:"deadline"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
	Priority    string     `json:"priority"`
	Category    string     `json:"category"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Patch holds the fields of an update. Nil means unchanged.
type Patch struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Target      *float64 `json:"target"`
	Current     *float64 `json:"current"`
	Deadline    *string  `json:"deadline"`
	Priority    *string  `json:"priority"`
	Category    *string  `json:"category"`
	Completed   *bool    `json:"completed"`
}

type Breakdown struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

type Stats struct {
	Total          int                   `json:"total"`
	Completed      int                   `json:"completed"`
	Active         int                   `json:"active"`
	Overdue        int                   `json:"overdue"`
	CompletionRate float64               `json:"completionRate"`
	ByType         map[string]*Breakdown `json:"byType"`
	ByCategory     map[string]*Breakdown `json:"byCategory"`
}
