package assistant

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"studyflow-backend/internal/goals"
	"studyflow-backend/internal/sessions"
	"studyflow-backend/internal/subjects"
	"studyflow-backend/internal/tasks"
)

// RecentSessionLimit bounds how many sessions go into a snapshot.
const RecentSessionLimit = 5

type PendingTask struct {
	Title    string
	Deadline *time.Time
}

type RecentSession struct {
	Subject         string
	DurationMinutes int
	OccurredAt      time.Time
}

type ActiveGoal struct {
	Title  string
	Target float64
	Unit   string
}

// Snapshot is the per-request view of a user's study data. It is never stored.
type Snapshot struct {
	SubjectNames   []string
	PendingTasks   []PendingTask
	RecentSessions []RecentSession
	ActiveGoals    []ActiveGoal
}

// Assembler reads the snapshot sources.
type Assembler struct {
	Subjects *subjects.Store
	Tasks    *tasks.Store
	Sessions *sessions.Store
	Goals    *goals.Store
}

// Assemble runs the four reads concurrently. A failed read is logged and its
// category is left empty; the snapshot itself never fails.
func (a *Assembler) Assemble(ctx context.Context, userID int) Snapshot {
	var (
		snap Snapshot
		g    errgroup.Group
	)
	degrade := func(what string, err error) {
		log.Warn().Err(err).Int("user_id", userID).Str("source", what).Msg("assistant context read failed")
	}

	g.Go(func() error {
		list, err := a.Subjects.List(ctx, userID)
		if err != nil {
			degrade("subjects", err)
			return nil
		}
		for _, s := range list {
			snap.SubjectNames = append(snap.SubjectNames, s.Name)
		}
		return nil
	})
	g.Go(func() error {
		list, err := a.Tasks.Pending(ctx, userID)
		if err != nil {
			degrade("tasks", err)
			return nil
		}
		for _, t := range list {
			snap.PendingTasks = append(snap.PendingTasks, PendingTask{Title: t.Title, Deadline: t.Deadline})
		}
		return nil
	})
	g.Go(func() error {
		list, err := a.Sessions.List(ctx, userID, RecentSessionLimit)
		if err != nil {
			degrade("sessions", err)
			return nil
		}
		for _, s := range list {
			snap.RecentSessions = append(snap.RecentSessions, RecentSession{
				Subject:         s.Subject,
				DurationMinutes: s.DurationMinutes,
				OccurredAt:      s.OccurredAt,
			})
		}
		return nil
	})
	g.Go(func() error {
		list, err := a.Goals.Active(ctx, userID)
		if err != nil {
			degrade("goals", err)
			return nil
		}
		for _, gl := range list {
			snap.ActiveGoals = append(snap.ActiveGoals, ActiveGoal{Title: gl.Title, Target: gl.Target, Unit: gl.Unit})
		}
		return nil
	})

	_ = g.Wait()
	return snap
}

const none = "None"

// Render formats the snapshot as the context block of the prompt.
// Empty categories render as None so the block is always complete.
func (s Snapshot) Render() string {
	subjectsLine := none
	if len(s.SubjectNames) > 0 {
		subjectsLine = strings.Join(s.SubjectNames, ", ")
	}

	tasksLine := joinOrNone(s.PendingTasks, func(t PendingTask) string {
		due := "No date"
		if t.Deadline != nil {
			due = t.Deadline.UTC().Format(dateLayout)
		}
		return fmt.Sprintf("%s (Due: %s)", t.Title, due)
	})
	sessionsLine := joinOrNone(s.RecentSessions, func(r RecentSession) string {
		return fmt.Sprintf("%s for %d mins on %s", r.Subject, r.DurationMinutes, r.OccurredAt.UTC().Format(dateLayout))
	})
	goalsLine := joinOrNone(s.ActiveGoals, func(g ActiveGoal) string {
		return fmt.Sprintf("%s (Target: %s %s)", g.Title, strconv.FormatFloat(g.Target, 'f', -1, 64), g.Unit)
	})

	var b strings.Builder
	b.WriteString("- Current Subjects: ")
	b.WriteString(subjectsLine)
	b.WriteString("\n- Pending Tasks: ")
	b.WriteString(tasksLine)
	b.WriteString("\n- Recent Study Sessions: ")
	b.WriteString(sessionsLine)
	b.WriteString("\n- Active Goals: ")
	b.WriteString(goalsLine)
	b.WriteString("\n")
	return b.String()
}

func joinOrNone[T any](items []T, format func(T) string) string {
	if len(items) == 0 {
		return none
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = format(it)
	}
	return strings.Join(parts, ", ")
}
