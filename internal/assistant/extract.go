package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hay-kot/criterio"

	"studyflow-backend/internal/validate"
)

// Action tags on the wire.
const (
	ActionCreateTask = "create_task"
	ActionAddSubject = "add_subject"
	ActionSetGoal    = "set_goal"
)

// ActionRequest is one of CreateTask, AddSubject or SetGoal.
type ActionRequest interface {
	Tag() string
}

type CreateTask struct {
	Title    string
	Deadline *time.Time
	Priority string
}

type AddSubject struct {
	Name string
}

type SetGoal struct {
	Title  string
	Target float64
	Unit   string
	Type   string
}

func (CreateTask) Tag() string { return ActionCreateTask }
func (AddSubject) Tag() string { return ActionAddSubject }
func (SetGoal) Tag() string    { return ActionSetGoal }

// Extraction is the result of scanning a completion for an action payload.
type Extraction struct {
	DisplayText string
	Action      ActionRequest
	ParseError  string
}

// Extractor finds and validates an embedded action.
type Extractor interface {
	Extract(raw string) Extraction
}

// FailedActionNote is appended when a payload was present but unusable.
const FailedActionNote = "(Note: I tried to perform an action but something went wrong.)"

var delimited = regexp.MustCompile(`(?s)\|\|\|(.*?)\|\|\|`)

// DelimitedExtractor reads the |||{json}||| protocol. Only the first span is
// parsed; every span is removed from the display text.
type DelimitedExtractor struct{}

func (DelimitedExtractor) Extract(raw string) Extraction {
	m := delimited.FindStringSubmatch(raw)
	if m == nil {
		return Extraction{DisplayText: raw}
	}

	text := strings.TrimSpace(delimited.ReplaceAllString(raw, ""))
	action, err := ParseAction(m[1])
	if err != nil {
		if text != "" {
			text += "\n\n"
		}
		return Extraction{DisplayText: text + FailedActionNote, ParseError: err.Error()}
	}
	return Extraction{DisplayText: text, Action: action}
}

type envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type payload struct {
	Title    string   `json:"title"`
	Name     string   `json:"name"`
	Deadline string   `json:"deadline"`
	Priority string   `json:"priority"`
	Target   *float64 `json:"target"`
	Unit     string   `json:"unit"`
	Type     string   `json:"type"`
}

// ParseAction decodes and validates one payload. Unknown tags are rejected.
func ParseAction(raw string) (ActionRequest, error) {
	var env envelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &env); err != nil {
		return nil, fmt.Errorf("invalid action json: %w", err)
	}

	var p payload
	if data := bytes.TrimSpace(env.Data); len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("invalid %s data: %w", env.Action, err)
		}
	}

	switch env.Action {
	case ActionCreateTask:
		var (
			errs     criterio.FieldErrorsBuilder
			deadline *time.Time
		)
		if p.Deadline != "" {
			d, err := validate.ParseDate(p.Deadline)
			if err != nil {
				errs = errs.Append("deadline", err)
			} else {
				deadline = &d
			}
		}
		if err := criterio.ValidateStruct(
			validate.RequiredField("title", p.Title),
			validate.PriorityField("priority", p.Priority),
			errs.ToError(),
		); err != nil {
			return nil, err
		}
		return CreateTask{
			Title:    strings.TrimSpace(p.Title),
			Deadline: deadline,
			Priority: validate.OrDefault(p.Priority, "medium"),
		}, nil

	case ActionAddSubject:
		if err := validate.RequiredField("name", p.Name); err != nil {
			return nil, err
		}
		return AddSubject{Name: strings.TrimSpace(p.Name)}, nil

	case ActionSetGoal:
		targetErr := error(criterio.NewFieldErrors("target", errors.New("is required")))
		if p.Target != nil {
			targetErr = criterio.Run("target", *p.Target, validate.Positive)
		}
		goalType := validate.OrDefault(p.Type, "daily")
		if err := criterio.ValidateStruct(
			validate.RequiredField("title", p.Title),
			validate.RequiredField("unit", p.Unit),
			criterio.Run("type", goalType, validate.OneOf(validate.PeriodGoalTypes...)),
			targetErr,
		); err != nil {
			return nil, err
		}
		return SetGoal{
			Title:  strings.TrimSpace(p.Title),
			Target: *p.Target,
			Unit:   strings.TrimSpace(p.Unit),
			Type:   goalType,
		}, nil

	case "":
		return nil, errors.New("action tag is missing")
	default:
		return nil, fmt.Errorf("unknown action %q", env.Action)
	}
}
