package tasks

import (
	"errors"
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

func GetTasksHandler(store *Store) http.HandlerFunc {
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

func CreateTaskHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		var body struct {
			Title       string `json:"title"`
			Text        string `json:"text"` // older clients
			Description string `json:"description"`
			Deadline    string `json:"deadline"`
			Priority    string `json:"priority"`
		}
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		title := strings.TrimSpace(validate.OrDefault(body.Title, body.Text))

		var deadline *time.Time
		err := criterio.ValidateStruct(
			validate.RequiredField("title", title),
			validate.PriorityField("priority", body.Priority),
			func() error {
				if body.Deadline == "" {
					return nil
				}
				d, err := validate.ParseDate(body.Deadline)
				if err != nil {
					return criterio.NewFieldErrors("deadline", err)
				}
				deadline = &d
				return nil
			}(),
		)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		t, err := store.Create(r.Context(), Task{
			UserID:      uid,
			Title:       title,
			Description: body.Description,
			Deadline:    deadline,
			Priority:    body.Priority,
		})
		if err != nil {
			log.Error().Err(err).Int("user_id", uid).Msg("create task failed")
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		pub.Publish(uid, notify.TaskCreated, t)
		analytics.LogRequest(r, store.DB, uid, "task_created", map[string]any{
			"task_id":      t.ID,
			"text_len":     len(t.Title) + len(t.Description),
			"has_deadline": t.Deadline != nil,
			"priority":     t.Priority,
			"created_from": "manual",
		})

		httpjson.Write(w, http.StatusCreated, t)
	}
}

func UpdateTaskHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		id, ok := httpjson.PathID(r)
		if !ok {
			httpjson.Error(w, http.StatusBadRequest, "Invalid task ID")
			return
		}

		var p Patch
		if err := httpjson.Decode(r, &p); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if p.Priority != nil {
			if err := validate.PriorityField("priority", *p.Priority); err != nil {
				httpjson.Error(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		before, err := store.Get(r.Context(), uid, id)
		if errors.Is(err, ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "Task not found")
			return
		}
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		t, err := store.Update(r.Context(), uid, id, p)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				httpjson.Error(w, http.StatusNotFound, "Task not found")
				return
			}
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		pub.Publish(uid, notify.TaskUpdated, t)
		if t.Completed && !before.Completed {
			analytics.LogRequest(r, store.DB, uid, "task_completed", map[string]any{
				"task_id":      t.ID,
				"age_hours":    int(t.CompletedAt.Sub(t.CreatedAt).Hours()),
				"had_deadline": t.Deadline != nil,
			})
		}

		httpjson.OK(w, t)
	}
}

func DeleteTaskHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		id, ok := httpjson.PathID(r)
		if !ok {
			httpjson.Error(w, http.StatusBadRequest, "Invalid task ID")
			return
		}

		err := store.Delete(r.Context(), uid, id)
		if errors.Is(err, ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "Task not found")
			return
		}
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		pub.Publish(uid, notify.TaskDeleted, id)
		analytics.LogRequest(r, store.DB, uid, "task_deleted", map[string]any{"task_id": id})

		httpjson.OK(w, map[string]any{"message": "Task removed"})
	}
}
