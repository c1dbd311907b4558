package reports

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"studyflow-backend/internal/achievements"
	"studyflow-backend/internal/goals"
	"studyflow-backend/internal/sessions"
	"studyflow-backend/internal/subjects"
	"studyflow-backend/internal/tasks"
)

var ErrInvalidExportType = errors.New("invalid export type")

// ExportTypes are the accepted values of the type filter.
var ExportTypes = []string{"all", "sessions", "tasks", "subjects", "goals", "achievements"}

// ExportFilter selects what to export. From/To only narrow sessions.
type ExportFilter struct {
	Type string
	From *time.Time
	To   *time.Time
}

func (f ExportFilter) wants(kind string) bool {
	return f.Type == "" || f.Type == "all" || f.Type == kind
}

// Export is the JSON export document; sections not requested stay nil.
type Export struct {
	Sessions     []sessions.Session         `json:"sessions,omitempty"`
	Tasks        []tasks.Task               `json:"tasks,omitempty"`
	Subjects     []subjects.Subject         `json:"subjects,omitempty"`
	Goals        []goals.Goal               `json:"goals,omitempty"`
	Achievements []achievements.Achievement `json:"achievements,omitempty"`
}

func (s *Service) Export(ctx context.Context, userID int, f ExportFilter) (Export, error) {
	if f.Type != "" && !slices.Contains(ExportTypes, f.Type) {
		return Export{}, ErrInvalidExportType
	}

	var (
		out Export
		err error
	)
	if f.wants("sessions") {
		if out.Sessions, err = s.sessionStore().List(ctx, userID, 0); err != nil {
			return Export{}, fmt.Errorf("export sessions: %w", err)
		}
		out.Sessions = slices.DeleteFunc(out.Sessions, func(sess sessions.Session) bool {
			return (f.From != nil && sess.OccurredAt.Before(*f.From)) || (f.To != nil && sess.OccurredAt.After(*f.To))
		})
	}
	if f.wants("tasks") {
		if out.Tasks, err = s.taskStore().List(ctx, userID); err != nil {
			return Export{}, fmt.Errorf("export tasks: %w", err)
		}
	}
	if f.wants("subjects") {
		if out.Subjects, err = s.subjectStore().List(ctx, userID); err != nil {
			return Export{}, fmt.Errorf("export subjects: %w", err)
		}
	}
	if f.wants("goals") {
		if out.Goals, err = (&goals.Store{DB: s.DB}).List(ctx, userID); err != nil {
			return Export{}, fmt.Errorf("export goals: %w", err)
		}
	}
	if f.wants("achievements") {
		if out.Achievements, err = (&achievements.Store{DB: s.DB}).List(ctx, userID); err != nil {
			return Export{}, fmt.Errorf("export achievements: %w", err)
		}
	}
	return out, nil
}

// WriteCSV writes one section per exported kind, each with its own header row,
// separated by a blank line.
func (e Export) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	first := true
	section := func(header []string, rows [][]string) {
		if !first {
			_ = cw.Write([]string{})
		}
		first = false
		_ = cw.Write(header)
		_ = cw.WriteAll(rows)
	}

	if e.Sessions != nil {
		rows := make([][]string, 0, len(e.Sessions))
		for _, s := range e.Sessions {
			rows = append(rows, []string{"Session", s.Subject, strconv.Itoa(s.DurationMinutes), stamp(&s.OccurredAt)})
		}
		section([]string{"Type", "Subject", "Duration (minutes)", "Timestamp"}, rows)
	}
	if e.Tasks != nil {
		rows := make([][]string, 0, len(e.Tasks))
		for _, t := range e.Tasks {
			rows = append(rows, []string{"Task", t.Title, t.Description, strconv.FormatBool(t.Completed), stamp(&t.CreatedAt), stamp(t.CompletedAt)})
		}
		section([]string{"Type", "Title", "Description", "Completed", "Created At", "Completed At"}, rows)
	}
	if e.Subjects != nil {
		rows := make([][]string, 0, len(e.Subjects))
		for _, s := range e.Subjects {
			rows = append(rows, []string{"Subject", s.Name, s.Category, s.Color, number(s.TargetHours), s.Description})
		}
		section([]string{"Type", "Name", "Category", "Color", "Target Hours", "Description"}, rows)
	}
	if e.Goals != nil {
		rows := make([][]string, 0, len(e.Goals))
		for _, g := range e.Goals {
			rows = append(rows, []string{"Goal", g.Title, g.Type, number(g.Target), number(g.Current), g.Unit, stamp(g.Deadline), strconv.FormatBool(g.Completed)})
		}
		section([]string{"Type", "Title", "Goal Type", "Target", "Current", "Unit", "Deadline", "Completed"}, rows)
	}
	if e.Achievements != nil {
		rows := make([][]string, 0, len(e.Achievements))
		for _, a := range e.Achievements {
			rows = append(rows, []string{"Achievement", a.Title, a.Category, strconv.FormatBool(a.Unlocked), number(a.Progress), stamp(a.UnlockedAt)})
		}
		section([]string{"Type", "Title", "Category", "Unlocked", "Progress", "Unlocked At"}, rows)
	}

	cw.Flush()
	return cw.Error()
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
