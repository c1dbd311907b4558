package assistant

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"studyflow-backend/internal/ai"
	"studyflow-backend/internal/analytics"
	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/httpjson"
)

type askResponse struct {
	Answer          string  `json:"answer"`
	Model           *string `json:"model"`
	Timestamp       string  `json:"timestamp"`
	ActionPerformed *string `json:"actionPerformed"`
	ActionStatus    string  `json:"actionStatus"`
}

func AskHandler(svc *Service, users *auth.Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		var body struct {
			Prompt string `json:"prompt"`
		}
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(body.Prompt) == "" {
			httpjson.Error(w, http.StatusBadRequest, "Prompt is required")
			return
		}

		u, err := users.ByID(r.Context(), uid)
		if err != nil {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized, user not found")
			return
		}

		reply := svc.Ask(r.Context(), Identity{ID: uid, Name: u.DisplayName()}, body.Prompt)

		res := askResponse{
			Answer:       reply.Answer,
			Timestamp:    reply.Timestamp.Format(time.RFC3339),
			ActionStatus: reply.Outcome.Kind.String(),
		}
		if reply.Model != "" {
			res.Model = &reply.Model
		}
		if reply.Outcome.Kind == OutcomeSuccess {
			res.ActionPerformed = &reply.Outcome.Message
		}

		analytics.LogRequest(r, users.DB, uid, "assistant_asked", map[string]any{
			"model":      reply.Model,
			"outcome":    reply.Outcome.Kind.String(),
			"prompt_len": len(body.Prompt),
		})
		httpjson.OK(w, res)
	}
}

func QuizHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		var body struct {
			Topic string `json:"topic"`
		}
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(body.Topic) == "" {
			httpjson.Error(w, http.StatusBadRequest, "Topic is required")
			return
		}

		qs, err := svc.GenerateQuiz(r.Context(), uid, strings.TrimSpace(body.Topic))
		if err != nil {
			log.Error().Err(err).Int("user_id", uid).Msg("quiz generation failed")
			var de *ai.DispatchError
			if errors.As(err, &de) && de.Kind == ai.QuotaExceeded {
				httpjson.Error(w, http.StatusServiceUnavailable, QuotaAnswer)
				return
			}
			httpjson.Error(w, http.StatusInternalServerError, "Quiz generation failed")
			return
		}
		httpjson.OK(w, map[string]any{"questions": qs})
	}
}

func QuizzesHandler(store *QuizStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		list, err := store.List(r.Context(), uid)
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, list)
	}
}

func ScoreQuizHandler(store *QuizStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		id, ok := httpjson.PathID(r)
		if !ok {
			httpjson.Error(w, http.StatusBadRequest, "Invalid quiz ID")
			return
		}

		var body struct {
			Score *int `json:"score"`
		}
		if err := httpjson.Decode(r, &body); err != nil || body.Score == nil {
			httpjson.Error(w, http.StatusBadRequest, "Score is required")
			return
		}
		if *body.Score < 0 || *body.Score > QuizLength {
			httpjson.Error(w, http.StatusBadRequest, fmt.Sprintf("Score must be between 0 and %d", QuizLength))
			return
		}

		q, err := store.Score(r.Context(), uid, id, *body.Score)
		if errors.Is(err, ErrQuizNotFound) {
			httpjson.Error(w, http.StatusNotFound, "Quiz not found")
			return
		}
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		analytics.LogRequest(r, store.DB, uid, "quiz_scored", map[string]any{"quiz_id": q.ID, "score": q.Score})
		httpjson.OK(w, q)
	}
}

type healthModel struct {
	Name        string `json:"name"`
	RateLimit   string `json:"rateLimit"`
	Recommended bool   `json:"recommended"`
}

// HealthHandler reports whether a backend is configured and the roster in use.
func HealthHandler(roster *ai.Roster, defaultModel string, hasKey bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models := []healthModel{}
		for _, c := range roster.Candidates() {
			models = append(models, healthModel{Name: c.Name, RateLimit: c.RateClass, Recommended: c.Primary})
		}
		status := "ready"
		if !hasKey {
			status = "no api key"
		}
		httpjson.OK(w, map[string]any{
			"active":          hasKey,
			"defaultModel":    defaultModel,
			"hasKey":          hasKey,
			"availableModels": models,
			"status":          status,
		})
	}
}
