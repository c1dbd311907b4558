package goals

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog/log"

	"studyflow-backend/internal/analytics"
	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/httpjson"
	"studyflow-backend/internal/notify"
	"studyflow-backend/internal/validate"
)

func GetGoalsHandler(store *Store) http.HandlerFunc {
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

func CreateGoalHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		var body struct {
			Title       string  `json:"title"`
			Description string  `json:"description"`
			Type        string  `json:"type"`
			Target      float64 `json:"target"`
			Unit        string  `json:"unit"`
			Subject     string  `json:"subject"`
			Deadline    string  `json:"deadline"`
			Priority    string  `json:"priority"`
			Category    string  `json:"category"`
		}
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(body.Title) == "" || body.Type == "" || body.Target == 0 || body.Unit == "" {
			httpjson.Error(w, http.StatusBadRequest, "Please provide all required fields")
			return
		}

		var (
			errs     criterio.FieldErrorsBuilder
			deadline *time.Time
		)
		if body.Target < 0 {
			errs = errs.Append("target", errors.New("must be positive"))
		}
		if body.Deadline != "" {
			d, err := validate.ParseDate(body.Deadline)
			if err != nil {
				errs = errs.Append("deadline", err)
			} else {
				deadline = &d
			}
		}
		if err := criterio.ValidateStruct(
			criterio.Run("type", body.Type, validate.OneOf(validate.GoalTypes...)),
			criterio.Run("unit", body.Unit, validate.OneOf(validate.GoalUnits...)),
			validate.PriorityField("priority", body.Priority),
			errs.ToError(),
		); err != nil {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		g := Goal{
			UserID:      uid,
			Title:       body.Title,
			Description: body.Description,
			Type:        body.Type,
			Target:      body.Target,
			Unit:        body.Unit,
			Deadline:    deadline,
			Priority:    body.Priority,
			Category:    body.Category,
		}
		if body.Subject != "" {
			g.Subject = &body.Subject
		}

		g, err := store.Create(r.Context(), g)
		if err != nil {
			log.Error().Err(err).Int("user_id", uid).Msg("create goal failed")
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		pub.Publish(uid, notify.GoalCreated, g)
		analytics.LogRequest(r, store.DB, uid, "goal_created", map[string]any{
			"goal_id":      g.ID,
			"type":         g.Type,
			"unit":         g.Unit,
			"has_deadline": g.Deadline != nil,
			"text_len":     len(strings.TrimSpace(g.Title)) + len(strings.TrimSpace(g.Description)),
		})

		httpjson.Write(w, http.StatusCreated, g)
	}
}

func UpdateGoalHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		id, ok := httpjson.PathID(r)
		if !ok {
			httpjson.Error(w, http.StatusBadRequest, "Invalid goal ID")
			return
		}

		var p Patch
		if err := httpjson.Decode(r, &p); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		g, err := store.Update(r.Context(), uid, id, p)
		if errors.Is(err, ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "Goal not found")
			return
		}
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		pub.Publish(uid, notify.GoalUpdated, g)
		analytics.LogRequest(r, store.DB, uid, "goal_updated", map[string]any{
			"goal_id":   g.ID,
			"completed": g.Completed,
		})

		httpjson.OK(w, g)
	}
}

func DeleteGoalHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		id, ok := httpjson.PathID(r)
		if !ok {
			httpjson.Error(w, http.StatusBadRequest, "Invalid goal ID")
			return
		}

		err := store.Delete(r.Context(), uid, id)
		if errors.Is(err, ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "Goal not found")
			return
		}
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		pub.Publish(uid, notify.GoalDeleted, id)
		httpjson.OK(w, map[string]any{"message": "Goal removed"})
	}
}

func UpdateProgressHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		changed, err := store.RefreshProgress(r.Context(), uid, time.Now())
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, g := range changed {
			pub.Publish(uid, notify.GoalUpdated, g)
		}
		httpjson.OK(w, map[string]any{"message": fmt.Sprintf("Updated %d goals", len(changed))})
	}
}

func StatsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		st, err := store.Stats(r.Context(), uid, time.Now())
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, st)
	}
}

// RefreshHook recomputes progress after new study activity. Failures are logged only.
func RefreshHook(store *Store, pub notify.Publisher) func(ctx context.Context, userID int) {
	return func(ctx context.Context, userID int) {
		changed, err := store.RefreshProgress(ctx, userID, time.Now())
		if err != nil {
			log.Warn().Err(err).Int("user_id", userID).Msg("goal progress refresh failed")
			return
		}
		for _, g := range changed {
			pub.Publish(userID, notify.GoalUpdated, g)
		}
	}
}
