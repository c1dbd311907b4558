// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
)

var (
	Priorities = []string{"low", "medium", "high"}
	GoalTypes  = []string{"daily", "weekly", "monthly", "subject-specific", "total-hours"}
	GoalUnits  = []string{"hours", "sessions", "tasks", "days"}

	// PeriodGoalTypes are the goal types the assistant may create.
	PeriodGoalTypes = []string{"daily", "weekly", "monthly"}
)

// Required validates a string is non-empty after trimming whitespace.
func Required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

// OneOf returns a validator accepting only the listed values.
func OneOf(allowed ...string) func(string) error {
	return func(s string) error {
		if !slices.Contains(allowed, s) {
			return fmt.Errorf("must be one of %s, got %q", strings.Join(allowed, ", "), s)
		}
		return nil
	}
}

// Positive validates a number is greater than zero.
func Positive(v float64) error {
	if v <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

// RequiredField returns a criterio validator for a required string.
func RequiredField(field, s string) error {
	return criterio.Run(field, s, Required)
}

// PriorityField validates an optional priority; empty is allowed.
func PriorityField(field, p string) error {
	if p == "" {
		return nil
	}
	return criterio.Run(field, p, OneOf(Priorities...))
}

// OrDefault returns s, or def when s is blank.
func OrDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// ParseDate accepts YYYY-MM-DD or RFC 3339. Dates without a time are midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}
