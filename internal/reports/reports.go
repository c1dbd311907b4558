// Package reports builds the read-only study analytics: trends, productivity,
// per-subject performance, period reports and data exports.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"studyflow-backend/internal/sessions"
	"studyflow-backend/internal/subjects"
	"studyflow-backend/internal/tasks"
)

var ErrInvalidPeriod = errors.New("invalid report period")

const dayLayout = "2006-01-02"

type Service struct {
	DB *sql.DB
}

func (s *Service) sessionStore() *sessions.Store { return &sessions.Store{DB: s.DB} }
func (s *Service) taskStore() *tasks.Store { return &tasks.Store{DB: s.DB} }
func (s *Service) subjectStore() *subjects.Store { return &subjects.Store{DB: s.DB} }

// Trends maps YYYY-MM-DD to minutes studied.
type Trends struct {
	TotalDays     int                       `json:"totalDays"`
	AverageDaily  float64                   `json:"averageDaily"`
	Trends        map[string]int            `json:"trends"`
	SubjectTrends map[string]map[string]int `json:"subjectTrends"`
}

// TimeTrends sums minutes per day and per subject over the last days days.
func (s *Service) TimeTrends(ctx context.Context, userID, days int, now time.Time) (Trends, error) {
	if days <= 0 {
		days = 30
	}
	list, err := s.sessionStore().Since(ctx, userID, now.UTC().AddDate(0, 0, -days))
	if err != nil {
		return Trends{}, err
	}

	out := Trends{Trends: map[string]int{}, SubjectTrends: map[string]map[string]int{}}
	var total int
	for _, sess := range list {
		if sess.OccurredAt.After(now) {
			continue
		}
		day := sess.OccurredAt.UTC().Format(dayLayout)
		out.Trends[day] += sess.DurationMinutes
		if out.SubjectTrends[sess.Subject] == nil {
			out.SubjectTrends[sess.Subject] = map[string]int{}
		}
		out.SubjectTrends[sess.Subject][day] += sess.DurationMinutes
		total += sess.DurationMinutes
	}
	out.TotalDays = len(out.Trends)
	out.AverageDaily = float64(total) / float64(max(out.TotalDays, 1))
	return out, nil
}

type Productivity struct {
	TotalSessions        int     `json:"totalSessions"`
	TotalTime            int     `json:"totalTime"`
	AverageSessionLength float64 `json:"averageSessionLength"`
	CompletionRate       float64 `json:"completionRate"`
	CurrentStreak        int     `json:"currentStreak"`
	LongestStreak        int     `json:"longestStreak"`
	StudyDaysCount       int     `json:"studyDaysCount"`
}

func (s *Service) Productivity(ctx context.Context, userID int, now time.Time) (Productivity, error) {
	all, err := s.sessionStore().List(ctx, userID, 0)
	if err != nil {
		return Productivity{}, err
	}
	tl, err := s.taskStore().List(ctx, userID)
	if err != nil {
		return Productivity{}, err
	}

	var p Productivity
	p.TotalSessions = len(all)
	for _, sess := range all {
		p.TotalTime += sess.DurationMinutes
	}
	if p.TotalSessions > 0 {
		p.AverageSessionLength = float64(p.TotalTime) / float64(p.TotalSessions)
	}

	var done int
	for _, t := range tl {
		if t.Completed {
			done++
		}
	}
	if len(tl) > 0 {
		p.CompletionRate = float64(done) / float64(len(tl)) * 100
	}

	days := sessions.StudyDays(all)
	p.StudyDaysCount = len(days)
	p.CurrentStreak, p.LongestStreak = sessions.Streaks(days, now)
	return p, nil
}

type Performance struct {
	TargetHours float64 `json:"targetHours"`
	ActualHours float64 `json:"actualHours"`
	Sessions    int     `json:"sessions"`
	Efficiency  float64 `json:"efficiency"`
	Category    string  `json:"category"`
	Priority    string  `json:"priority"`
}

// SubjectPerformance compares logged hours to each subject's target.
// Sessions for subjects the user has not defined are ignored.
func (s *Service) SubjectPerformance(ctx context.Context, userID int) (map[string]*Performance, error) {
	subs, err := s.subjectStore().List(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.sessionStore().List(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Performance, len(subs))
	for _, sub := range subs {
		out[sub.Name] = &Performance{TargetHours: sub.TargetHours, Category: sub.Category, Priority: sub.Priority}
	}
	for _, sess := range all {
		p, ok := out[sess.Subject]
		if !ok {
			continue
		}
		p.ActualHours += float64(sess.DurationMinutes) / 60
		p.Sessions++
	}
	for _, p := range out {
		if p.TargetHours > 0 {
			p.Efficiency = p.ActualHours / p.TargetHours * 100
		}
	}
	return out, nil
}

type Report struct {
	Period           string         `json:"period"`
	StartDate        time.Time      `json:"startDate"`
	EndDate          time.Time      `json:"endDate"`
	TotalStudyTime   int            `json:"totalStudyTime"`
	TotalSessions    int            `json:"totalSessions"`
	TasksCreated     int            `json:"tasksCreated"`
	TasksCompleted   int            `json:"tasksCompleted"`
	SubjectBreakdown map[string]int `json:"subjectBreakdown"`
	DailyBreakdown   map[string]int `json:"dailyBreakdown"`
}

// PeriodReport summarises the last week or month.
func (s *Service) PeriodReport(ctx context.Context, userID int, period string, now time.Time) (Report, error) {
	now = now.UTC()
	var start time.Time
	switch period {
	case "weekly":
		start = now.AddDate(0, 0, -7)
	case "monthly":
		start = now.AddDate(0, -1, 0)
	default:
		return Report{}, ErrInvalidPeriod
	}

	list, err := s.sessionStore().Since(ctx, userID, start)
	if err != nil {
		return Report{}, err
	}
	tl, err := s.taskStore().List(ctx, userID)
	if err != nil {
		return Report{}, err
	}

	r := Report{
		Period:           period,
		StartDate:        start,
		EndDate:          now,
		SubjectBreakdown: map[string]int{},
		DailyBreakdown:   map[string]int{},
	}
	for _, sess := range list {
		if sess.OccurredAt.After(now) {
			continue
		}
		r.TotalSessions++
		r.TotalStudyTime += sess.DurationMinutes
		r.SubjectBreakdown[sess.Subject] += sess.DurationMinutes
		r.DailyBreakdown[sess.OccurredAt.UTC().Format(dayLayout)] += sess.DurationMinutes
	}
	for _, t := range tl {
		if t.CreatedAt.Before(start) || t.CreatedAt.After(now) {
			continue
		}
		r.TasksCreated++
		if t.Completed {
			r.TasksCompleted++
		}
	}
	return r, nil
}
