package assistant

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyflow-backend/internal/ai"
	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/dbtest"
	"studyflow-backend/internal/goals"
	"studyflow-backend/internal/notify"
	"studyflow-backend/internal/notify/notifytest"
	"studyflow-backend/internal/sessions"
	"studyflow-backend/internal/subjects"
	"studyflow-backend/internal/tasks"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type stubCompleter struct {
	text    string
	model   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (ai.Completion, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return ai.Completion{}, s.err
	}
	return ai.Completion{Text: s.text, Model: s.model}, nil
}

func newService(t *testing.T, c Completer) (*Service, *sql.DB, int, *notifytest.Recorder) {
	t.Helper()
	dbx := dbtest.New(t)
	uid := dbtest.User(t, dbx, "ana", "")
	pub := &notifytest.Recorder{}

	svc := &Service{
		Assembler: &Assembler{
			Subjects: &subjects.Store{DB: dbx},
			Tasks:    &tasks.Store{DB: dbx},
			Sessions: &sessions.Store{DB: dbx},
			Goals:    &goals.Store{DB: dbx},
		},
		Completer: c,
		Executor: &Executor{
			Tasks:    &tasks.Store{DB: dbx},
			Subjects: &subjects.Store{DB: dbx},
			Goals:    &goals.Store{DB: dbx},
			Pub:      pub,
			Events:   dbx,
		},
		Quizzes: &QuizStore{DB: dbx},
		Now:     func() time.Time { return fixedNow },
	}
	return svc, dbx, uid, pub
}

func TestExtract_NoSentinelPassthrough(t *testing.T) {
	inputs := []string{
		"",
		"Study 25 minutes, then take a break.",
		"  leading and trailing space  ",
		"a single || pipe pair and {\"json\": true}",
		"one sentinel ||| but no closing one",
	}
	for _, in := range inputs {
		ex := DelimitedExtractor{}.Extract(in)
		assert.Equal(t, in, ex.DisplayText)
		assert.Nil(t, ex.Action)
		assert.Empty(t, ex.ParseError)
	}
}

func TestExtract_CreateTask(t *testing.T) {
	raw := "Sure, I added it.\n|||{\"action\": \"create_task\", \"data\": {\"title\": \"Revise  chapter 3\", \"deadline\": \"2026-03-20\"}}|||\n"

	ex := DelimitedExtractor{}.Extract(raw)
	require.Empty(t, ex.ParseError)
	assert.Equal(t, "Sure, I added it.", ex.DisplayText)
	assert.NotContains(t, ex.DisplayText, "|||")
	assert.NotContains(t, ex.DisplayText, "create_task")

	ct, ok := ex.Action.(CreateTask)
	require.True(t, ok)
	assert.Equal(t, "Revise  chapter 3", ct.Title)
	assert.Equal(t, "medium", ct.Priority)
	require.NotNil(t, ct.Deadline)
	assert.Equal(t, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), *ct.Deadline)
}

func TestExtract_PrettyPrintedPayload(t *testing.T) {
	raw := `Done!
|||
{
  "action": "set_goal",
  "data": {"title": "Deep work", "target": 2, "unit": "hours", "type": "weekly"}
}
|||`

	ex := DelimitedExtractor{}.Extract(raw)
	require.Empty(t, ex.ParseError)
	assert.Equal(t, "Done!", ex.DisplayText)
	assert.Equal(t, SetGoal{Title: "Deep work", Target: 2, Unit: "hours", Type: "weekly"}, ex.Action)
}

func TestExtract_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad json":          `|||{bad json}|||`,
		"unknown tag":       `|||{"action":"delete_task","data":{"title":"x"}}|||`,
		"missing tag":       `|||{"data":{"title":"x"}}|||`,
		"missing title":     `|||{"action":"create_task","data":{"priority":"high"}}|||`,
		"bad priority":      `|||{"action":"create_task","data":{"title":"x","priority":"urgent"}}|||`,
		"bad deadline":      `|||{"action":"create_task","data":{"title":"x","deadline":"next friday"}}|||`,
		"missing name":      `|||{"action":"add_subject","data":{}}|||`,
		"goal no target":    `|||{"action":"set_goal","data":{"title":"x","unit":"hours"}}|||`,
		"goal bad type":     `|||{"action":"set_goal","data":{"title":"x","target":1,"unit":"hours","type":"yearly"}}|||`,
		"goal zero":         `|||{"action":"set_goal","data":{"title":"x","target":0,"unit":"hours"}}|||`,
		"goal missing unit": `|||{"action":"set_goal","data":{"title":"x","target":3}}|||`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			ex := DelimitedExtractor{}.Extract("Here you go. " + payload)
			assert.Nil(t, ex.Action)
			assert.NotEmpty(t, ex.ParseError)
			assert.Equal(t, "Here you go.\n\n"+FailedActionNote, ex.DisplayText)
		})
	}
}

func TestParseAction_GoalTarget(t *testing.T) {
	_, err := ParseAction(`{"action":"set_goal","data":{"title":"x","target":-2,"unit":"hours"}}`)
	assert.EqualError(t, err, "target: must be positive")

	_, err = ParseAction(`{"action":"set_goal","data":{"title":"x","unit":"hours"}}`)
	assert.EqualError(t, err, "target: is required")

	a, err := ParseAction(`{"action":"set_goal","data":{"title":"x","target":0.5,"unit":"hours"}}`)
	require.NoError(t, err)
	assert.Equal(t, SetGoal{Title: "x", Target: 0.5, Unit: "hours", Type: "daily"}, a)
}

func TestExtract_Idempotent(t *testing.T) {
	raws := []string{
		`Great! |||{"action":"add_subject","data":{"name":"CSE Basic"}}|||`,
		`Oops |||{bad json}|||`,
		`two |||{"action":"add_subject","data":{"name":"A"}}||| and |||{"action":"add_subject","data":{"name":"B"}}|||`,
		"plain text",
	}
	for _, raw := range raws {
		first := DelimitedExtractor{}.Extract(raw)
		second := DelimitedExtractor{}.Extract(first.DisplayText)
		assert.Equal(t, first.DisplayText, second.DisplayText, raw)
		assert.Nil(t, second.Action)
		assert.Empty(t, second.ParseError)
	}
}

func TestExtract_OnlyFirstActionIsUsed(t *testing.T) {
	ex := DelimitedExtractor{}.Extract(`x |||{"action":"add_subject","data":{"name":"A"}}||| y |||{"action":"add_subject","data":{"name":"B"}}|||`)
	assert.Equal(t, AddSubject{Name: "A"}, ex.Action)
	assert.NotContains(t, ex.DisplayText, "|||")
}

func TestExecutor_CreateTaskWithoutDeadline(t *testing.T) {
	svc, dbx, uid, pub := newService(t, nil)
	ctx := context.Background()

	msg, err := svc.Executor.Execute(ctx, uid, CreateTask{Title: "Read notes", Priority: "medium"})
	require.NoError(t, err)
	assert.Equal(t, `Created task: "Read notes"`, msg)

	var deadline sql.NullTime
	require.NoError(t, dbx.QueryRow(`SELECT deadline FROM tasks WHERE user_id=$1`, uid).Scan(&deadline))
	assert.False(t, deadline.Valid, "no deadline is stored when none was given")
	assert.Equal(t, []string{notify.TaskCreated}, pub.Names())

	var events int
	require.NoError(t, dbx.QueryRow(`SELECT COUNT(*) FROM analytics_events WHERE event_name=$1`, "assistant_action_performed").Scan(&events))
	assert.Equal(t, 1, events)
}

func TestExecutor_SetGoalStartsAtZero(t *testing.T) {
	svc, _, uid, pub := newService(t, nil)
	ctx := context.Background()

	msg, err := svc.Executor.Execute(ctx, uid, SetGoal{Title: "Deep work", Target: 3, Unit: "hours", Type: "weekly"})
	require.NoError(t, err)
	assert.Equal(t, `Set goal: "Deep work"`, msg)

	list, err := svc.Executor.Goals.List(ctx, uid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Zero(t, list[0].Current)
	assert.Equal(t, "weekly", list[0].Type)
	assert.Nil(t, list[0].Deadline)
	assert.Equal(t, []string{notify.GoalCreated}, pub.Names())
}

func TestExecutor_PersistenceFailure(t *testing.T) {
	svc, dbx, uid, pub := newService(t, nil)
	require.NoError(t, dbx.Close())

	msg, err := svc.Executor.Execute(context.Background(), uid, AddSubject{Name: "Physics"})
	assert.Empty(t, msg)
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.True(t, strings.HasPrefix(err.Error(), "Failed to add subject: "), err.Error())
	assert.Empty(t, pub.Names())
}

func TestAsk_AddSubjectEndToEnd(t *testing.T) {
	stub := &stubCompleter{text: `Great! |||{"action":"add_subject","data":{"name":"CSE Basic"}}|||`, model: "gemini-2.5-flash"}
	svc, _, uid, pub := newService(t, stub)

	reply := svc.Ask(context.Background(), Identity{ID: uid, Name: "Ana"}, "Add CSE Basic as a subject")

	assert.NotContains(t, reply.Answer, "|||")
	assert.Contains(t, reply.Answer, "CSE Basic")
	assert.Equal(t, "Great!\n\n✅ Added subject: \"CSE Basic\"", reply.Answer)
	assert.Equal(t, OutcomeSuccess, reply.Outcome.Kind)
	assert.Equal(t, "gemini-2.5-flash", reply.Model)
	assert.Equal(t, fixedNow, reply.Timestamp)
	assert.Equal(t, []string{notify.SubjectCreated}, pub.Names())

	list, err := svc.Executor.Subjects.List(context.Background(), uid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "CSE Basic", list[0].Name)
}

func TestAsk_MalformedPayloadKeepsAnswer(t *testing.T) {
	stub := &stubCompleter{text: `Here is your plan for today. |||{bad json}|||`, model: "gemini-2.5-flash-lite"}
	svc, _, uid, pub := newService(t, stub)

	reply := svc.Ask(context.Background(), Identity{ID: uid, Name: "Ana"}, "make me a task")

	assert.Equal(t, OutcomeFailure, reply.Outcome.Kind)
	assert.NotEmpty(t, reply.Outcome.Message)
	assert.True(t, strings.HasPrefix(reply.Answer, "Here is your plan for today."))
	assert.Contains(t, reply.Answer, FailedActionNote)
	assert.NotContains(t, reply.Answer, "|||")
	assert.Equal(t, "gemini-2.5-flash-lite", reply.Model)
	assert.Empty(t, pub.Names())
}

func TestAsk_ExecutionFailureKeepsAnswer(t *testing.T) {
	stub := &stubCompleter{text: `On it. |||{"action":"create_task","data":{"title":"Lab report"}}|||`, model: "m"}
	svc, dbx, uid, _ := newService(t, stub)
	_, err := dbx.Exec(`DROP TABLE tasks`)
	require.NoError(t, err)

	reply := svc.Ask(context.Background(), Identity{ID: uid, Name: "Ana"}, "add a task")
	assert.Equal(t, OutcomeFailure, reply.Outcome.Kind)
	assert.True(t, strings.HasPrefix(reply.Answer, "On it.\n\n⚠️ Failed to create task: "), reply.Answer)
}

func TestAsk_DispatchFailures(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&ai.DispatchError{Kind: ai.QuotaExceeded}, QuotaAnswer},
		{&ai.DispatchError{Kind: ai.Unavailable}, UnavailableAnswer},
		{&ai.DispatchError{Kind: ai.AuthInvalid}, UnavailableAnswer},
		{errors.New("odd"), UnavailableAnswer},
	}
	for _, tc := range cases {
		svc, _, uid, _ := newService(t, &stubCompleter{err: tc.err})
		reply := svc.Ask(context.Background(), Identity{ID: uid, Name: "Ana"}, "hi")
		assert.Equal(t, tc.want, reply.Answer)
		assert.Empty(t, reply.Model)
		assert.Equal(t, OutcomeNone, reply.Outcome.Kind)
	}
}

func TestAsk_NotConfigured(t *testing.T) {
	svc, _, uid, _ := newService(t, nil)
	reply := svc.Ask(context.Background(), Identity{ID: uid, Name: "Ana"}, "hi")
	assert.Equal(t, NotConfiguredAnswer, reply.Answer)
	assert.Equal(t, OutcomeNone, reply.Outcome.Kind)
	assert.Empty(t, reply.Model)
}

func TestAsk_PromptCarriesDateAndContext(t *testing.T) {
	stub := &stubCompleter{text: "Keep going!", model: "m"}
	svc, _, uid, _ := newService(t, stub)
	ctx := context.Background()

	_, err := svc.Executor.Subjects.Create(ctx, subjects.Subject{UserID: uid, Name: "Math"})
	require.NoError(t, err)

	reply := svc.Ask(ctx, Identity{ID: uid, Name: "Ana"}, "What should I study?")
	assert.Equal(t, "Keep going!", reply.Answer)
	assert.Equal(t, OutcomeNone, reply.Outcome.Kind)

	require.Len(t, stub.prompts, 1)
	p := stub.prompts[0]
	assert.Contains(t, p, "Current date: 2026-03-14 (Saturday)")
	assert.Contains(t, p, "StudyFlow AI")
	assert.Contains(t, p, "- Current Subjects: Math")
	assert.Contains(t, p, "- Pending Tasks: None")
	assert.Contains(t, p, `User's Question: "What should I study?"`)
	assert.Contains(t, p, "|||")
}

func TestAssemble(t *testing.T) {
	svc, dbx, uid, _ := newService(t, nil)
	ctx := context.Background()

	empty := svc.Assembler.Assemble(ctx, uid)
	assert.Equal(t, "- Current Subjects: None\n- Pending Tasks: None\n- Recent Study Sessions: None\n- Active Goals: None\n", empty.Render())

	for i := 0; i < 7; i++ {
		at := fixedNow.Add(-time.Duration(i) * time.Hour)
		_, err := dbx.Exec(`INSERT INTO study_sessions (user_id, subject, duration_minutes, occurred_at, created_at) VALUES ($1, $2, $3, $4, $5)`,
			uid, "Math", 10+i, at, at)
		require.NoError(t, err)
	}
	_, err := dbx.Exec(`INSERT INTO tasks (user_id, title, completed, created_at) VALUES ($1, $2, $3, $4)`, uid, "Done already", true, fixedNow)
	require.NoError(t, err)
	_, err = dbx.Exec(`INSERT INTO tasks (user_id, title, completed, created_at) VALUES ($1, $2, $3, $4)`, uid, "Open one", false, fixedNow)
	require.NoError(t, err)
	_, err = dbx.Exec(`INSERT INTO goals (user_id, title, type, target, current, unit, completed, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uid, "Reached", "daily", 1.0, 1.0, "hours", false, fixedNow)
	require.NoError(t, err)
	_, err = dbx.Exec(`INSERT INTO goals (user_id, title, type, target, current, unit, completed, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uid, "Halfway", "daily", 2.0, 1.0, "hours", false, fixedNow)
	require.NoError(t, err)

	snap := svc.Assembler.Assemble(ctx, uid)
	require.Len(t, snap.RecentSessions, RecentSessionLimit)
	assert.Equal(t, 10, snap.RecentSessions[0].DurationMinutes, "newest first")
	require.Len(t, snap.PendingTasks, 1)
	assert.Equal(t, "Open one", snap.PendingTasks[0].Title)
	require.Len(t, snap.ActiveGoals, 1)
	assert.Equal(t, "Halfway", snap.ActiveGoals[0].Title)

	r := snap.Render()
	assert.Contains(t, r, "Open one (Due: No date)")
	assert.Contains(t, r, "Halfway (Target: 2 hours)")
	assert.Contains(t, r, "Math for 10 mins on 2026-03-14")
}

func TestAssemble_DegradesOnReadFailure(t *testing.T) {
	svc, dbx, uid, _ := newService(t, nil)
	_, err := dbx.Exec(`INSERT INTO subjects (user_id, name, created_at) VALUES ($1, $2, $3)`, uid, "Math", fixedNow)
	require.NoError(t, err)
	_, err = dbx.Exec(`DROP TABLE goals`)
	require.NoError(t, err)

	snap := svc.Assembler.Assemble(context.Background(), uid)
	assert.Equal(t, []string{"Math"}, snap.SubjectNames)
	assert.Empty(t, snap.ActiveGoals)
	assert.Contains(t, snap.Render(), "- Active Goals: None")
}

const validQuiz = "```json\n[" +
	`{"question":"Q1?","options":["a","b","c","d"],"correctAnswer":0},` +
	`{"question":"Q2?","options":["a","b","c","d"],"correctAnswer":1},` +
	`{"question":"Q3?","options":["a","b","c","d"],"correctAnswer":2},` +
	`{"question":"Q4?","options":["a","b","c","d"],"correctAnswer":3},` +
	`{"question":"Q5?","options":["a","b","c","d"],"correctAnswer":0}` +
	"]\n```"

func TestGenerateQuiz(t *testing.T) {
	stub := &stubCompleter{text: validQuiz, model: "m"}
	svc, _, uid, _ := newService(t, stub)
	ctx := context.Background()

	qs, err := svc.GenerateQuiz(ctx, uid, "Photosynthesis")
	require.NoError(t, err)
	require.Len(t, qs, QuizLength)
	assert.Equal(t, 3, qs[3].CorrectAnswer)
	assert.Contains(t, stub.prompts[0], `"Photosynthesis"`)

	saved, err := svc.Quizzes.List(ctx, uid)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Photosynthesis", saved[0].Topic)
	assert.Len(t, saved[0].Questions, QuizLength)

	scored, err := svc.Quizzes.Score(ctx, uid, saved[0].ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, scored.Score)
	assert.True(t, scored.Completed)

	_, err = svc.Quizzes.Score(ctx, uid, saved[0].ID+100, 1)
	assert.ErrorIs(t, err, ErrQuizNotFound)
}

func TestGenerateQuiz_NotConfigured(t *testing.T) {
	svc, _, uid, _ := newService(t, nil)
	qs, err := svc.GenerateQuiz(context.Background(), uid, "x")
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestParseQuiz_Invalid(t *testing.T) {
	bad := []string{
		`not json`,
		`[{"question":"Q?","options":["a","b","c","d"],"correctAnswer":0}]`,
		strings.Replace(validQuiz, `"correctAnswer":3`, `"correctAnswer":4`, 1),
		strings.Replace(validQuiz, `["a","b","c","d"],"correctAnswer":2`, `["a","b"],"correctAnswer":1`, 1),
	}
	for _, in := range bad {
		_, err := ParseQuiz(in)
		assert.ErrorIs(t, err, ErrInvalidQuiz, in)
	}
}

func TestAskHandler(t *testing.T) {
	stub := &stubCompleter{text: `Great! |||{"action":"add_subject","data":{"name":"CSE Basic"}}|||`, model: "gemini-2.5-flash"}
	svc, dbx, uid, _ := newService(t, stub)
	users := &auth.Users{DB: dbx}

	call := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/ai/ask", strings.NewReader(body))
		req = req.WithContext(auth.WithClaims(req.Context(), auth.Claims{UserID: uid}))
		rec := httptest.NewRecorder()
		AskHandler(svc, users)(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, call(`{"prompt":"  "}`).Code)

	rec := call(`{"prompt":"Add CSE Basic as a subject"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"answer": "Great!\n\n✅ Added subject: \"CSE Basic\"",
		"model": "gemini-2.5-flash",
		"timestamp": "2026-03-14T09:30:00Z",
		"actionPerformed": "Added subject: \"CSE Basic\"",
		"actionStatus": "success"
	}`, rec.Body.String())
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(ai.DefaultRoster(), "gemini-2.5-flash", false)(rec, httptest.NewRequest(http.MethodGet, "/api/ai/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":false`)
	assert.Contains(t, rec.Body.String(), `"name":"gemini-2.5-flash-lite"`)
	assert.Contains(t, rec.Body.String(), `"status":"no api key"`)
}
