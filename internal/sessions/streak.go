package sessions

import (
	"sort"
	"time"
)

// StudyDays returns the distinct UTC days with at least one session, ascending.
func StudyDays(list []Session) []time.Time {
	seen := map[time.Time]bool{}
	var days []time.Time
	for _, s := range list {
		d := truncateDay(s.OccurredAt)
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Streaks computes the current and longest runs of consecutive study days.
// The current streak survives until the end of the day after the last session.
func Streaks(days []time.Time, now time.Time) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	today := truncateDay(now)
	last := days[len(days)-1]
	if today.Sub(last) <= 24*time.Hour {
		current = run
	}
	return current, longest
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
