package subjects

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("subject not found")

type Subject struct {
	ID          int       `json:"id"`
	UserID      int       `json:"userId"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Color       string    `json:"color"`
	Description string    `json:"description"`
	TargetHours float64   `json:"targetHours"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Patch struct {
	Name        *string  `json:"name"`
	Category    *string  `json:"category"`
	Color       *string  `json:"color"`
	Description *string  `json:"description"`
	TargetHours *float64 `json:"targetHours"`
	Priority    *string  `json:"priority"`
}

type SubjectStat struct {
	Sessions    int     `json:"sessions"`
	Time        int     `json:"time"`
	TargetHours float64 `json:"targetHours"`
	Category    string  `json:"category"`
	Color       string  `json:"color"`
	Priority    string  `json:"priority"`
}

type CategoryStat struct {
	Subjects int `json:"subjects"`
	Time     int `json:"time"`
}

// Overview aggregates study minutes per subject and category.
type Overview struct {
	SubjectStats     map[string]*SubjectStat  `json:"subjectStats"`
	CategoryStats    map[string]*CategoryStat `json:"categoryStats"`
	TotalTargetHours float64                  `json:"totalTargetHours"`
	TotalStudyTime   int                      `json:"totalStudyTime"`
	CompletionRate   float64                  `json:"completionRate"`
}
