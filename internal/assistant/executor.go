package assistant

import (
	"context"
	"fmt"

	"studyflow-backend/internal/analytics"
	"studyflow-backend/internal/goals"
	"studyflow-backend/internal/notify"
	"studyflow-backend/internal/subjects"
	"studyflow-backend/internal/tasks"
)

// ExecutionError carries the human-readable failure of an otherwise valid action.
type ExecutionError struct {
	Verb string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("Failed to %s: %v", e.Verb, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor applies one action as a single insert.
type Executor struct {
	Tasks    *tasks.Store
	Subjects *subjects.Store
	Goals    *goals.Store
	Pub      notify.Publisher
	Events   analytics.Execer
}

// Execute returns a confirmation, or an *ExecutionError naming what failed.
func (e *Executor) Execute(ctx context.Context, userID int, action ActionRequest) (msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg, err = "", &ExecutionError{Verb: verb(action), Err: fmt.Errorf("%v", r)}
		}
	}()

	var (
		event   string
		payload any
	)
	switch a := action.(type) {
	case CreateTask:
		t, cerr := e.Tasks.Create(ctx, tasks.Task{UserID: userID, Title: a.Title, Deadline: a.Deadline, Priority: a.Priority})
		if cerr != nil {
			return "", &ExecutionError{Verb: verb(action), Err: cerr}
		}
		msg, event, payload = fmt.Sprintf(`Created task: "%s"`, t.Title), notify.TaskCreated, t

	case AddSubject:
		s, cerr := e.Subjects.Create(ctx, subjects.Subject{UserID: userID, Name: a.Name})
		if cerr != nil {
			return "", &ExecutionError{Verb: verb(action), Err: cerr}
		}
		msg, event, payload = fmt.Sprintf(`Added subject: "%s"`, s.Name), notify.SubjectCreated, s

	case SetGoal:
		g, cerr := e.Goals.Create(ctx, goals.Goal{UserID: userID, Title: a.Title, Target: a.Target, Unit: a.Unit, Type: a.Type})
		if cerr != nil {
			return "", &ExecutionError{Verb: verb(action), Err: cerr}
		}
		msg, event, payload = fmt.Sprintf(`Set goal: "%s"`, g.Title), notify.GoalCreated, g

	default:
		return "", &ExecutionError{Verb: "perform action", Err: fmt.Errorf("unsupported action %T", action)}
	}

	if e.Pub != nil {
		e.Pub.Publish(userID, event, payload)
	}
	// best-effort event row; Log never fails the action
	_ = analytics.Log(ctx, e.Events, analytics.Envelope{UserID: userID}, "assistant_action_performed", map[string]any{
		"action": action.Tag(),
	}, "")
	return msg, nil
}

func verb(action ActionRequest) string {
	switch action.(type) {
	case CreateTask:
		return "create task"
	case AddSubject:
		return "add subject"
	case SetGoal:
		return "set goal"
	}
	return "perform action"
}
