package assistant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
)

const (
	QuizLength    = 5
	QuizOptionLen = 4
)

var (
	ErrQuizNotFound = errors.New("quiz not found")
	ErrInvalidQuiz  = errors.New("invalid quiz")
)

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

type Quiz struct {
	ID        int            `json:"id"`
	UserID    int            `json:"userId"`
	Topic     string         `json:"topic"`
	Questions []QuizQuestion `json:"questions"`
	Score     int            `json:"score"`
	Completed bool           `json:"completed"`
	CreatedAt time.Time      `json:"createdAt"`
}

// QuizStore persists generated quizzes. Questions are stored as JSON text.
type QuizStore struct {
	DB *sql.DB
}

func (s *QuizStore) Create(ctx context.Context, userID int, topic string, questions []QuizQuestion) (Quiz, error) {
	b, err := json.Marshal(questions)
	if err != nil {
		return Quiz{}, err
	}
	q := Quiz{UserID: userID, Topic: topic, Questions: questions, CreatedAt: time.Now().UTC()}
	err = s.DB.QueryRowContext(ctx, `
		INSERT INTO quizzes (user_id, topic, questions, score, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, userID, topic, string(b), 0, false, q.CreatedAt).Scan(&q.ID)
	if err != nil {
		return Quiz{}, err
	}
	return q, nil
}

const quizColumns = `id, user_id, topic, questions, score, completed, created_at`

func scanQuiz(row interface{ Scan(...any) error }) (Quiz, error) {
	var (
		q   Quiz
		raw string
	)
	if err := row.Scan(&q.ID, &q.UserID, &q.Topic, &raw, &q.Score, &q.Completed, &q.CreatedAt); err != nil {
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(raw), &q.Questions); err != nil {
		return Quiz{}, fmt.Errorf("quiz %d questions: %w", q.ID, err)
	}
	return q, nil
}

// List returns the user's quizzes newest first.
func (s *QuizStore) List(ctx context.Context, userID int) ([]Quiz, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Score records the number of correct answers and marks the quiz completed.
func (s *QuizStore) Score(ctx context.Context, userID, id, score int) (Quiz, error) {
	if score < 0 || score > QuizLength {
		return Quiz{}, criterio.NewFieldErrors("score", fmt.Errorf("must be between 0 and %d", QuizLength))
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE quizzes SET score=$1, completed=$2 WHERE id=$3 AND user_id=$4`, score, true, id, userID)
	if err != nil {
		return Quiz{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Quiz{}, ErrQuizNotFound
	}
	return scanQuiz(s.DB.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id=$1 AND user_id=$2`, id, userID))
}

// ParseQuiz strips markdown fences and validates the question set.
func ParseQuiz(text string) ([]QuizQuestion, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	var qs []QuizQuestion
	if err := json.Unmarshal([]byte(text), &qs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}

	var errs criterio.FieldErrorsBuilder
	if len(qs) != QuizLength {
		errs = errs.Append("questions", fmt.Errorf("want %d questions, got %d", QuizLength, len(qs)))
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Question) == "" {
			errs = errs.Append(fmt.Sprintf("questions[%d].question", i), errors.New("is required"))
		}
		if len(q.Options) != QuizOptionLen {
			errs = errs.Append(fmt.Sprintf("questions[%d].options", i), fmt.Errorf("want %d options, got %d", QuizOptionLen, len(q.Options)))
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= QuizOptionLen {
			errs = errs.Append(fmt.Sprintf("questions[%d].correctAnswer", i), errors.New("must be between 0 and 3"))
		}
	}
	if err := errs.ToError(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	return qs, nil
}

// GenerateQuiz asks the backend for a quiz on topic and saves it.
// With no backend configured it returns no questions and no error.
func (s *Service) GenerateQuiz(ctx context.Context, userID int, topic string) ([]QuizQuestion, error) {
	if s.Completer == nil {
		return []QuizQuestion{}, nil
	}

	completion, err := s.Completer.Complete(ctx, BuildQuizPrompt(topic))
	if err != nil {
		return nil, err
	}
	qs, err := ParseQuiz(completion.Text)
	if err != nil {
		return nil, err
	}
	if s.Quizzes != nil {
		if _, err := s.Quizzes.Create(ctx, userID, topic, qs); err != nil {
			return nil, fmt.Errorf("save quiz: %w", err)
		}
	}
	return qs, nil
}
