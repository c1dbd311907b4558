package sessions

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"studyflow-backend/internal/analytics"
	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/httpjson"
	"studyflow-backend/internal/notify"
	"studyflow-backend/internal/validate"
)

// Hook runs after a session is stored, e.g. to refresh goal progress.
type Hook func(ctx context.Context, userID int)

func GetSessionsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		list, err := store.List(r.Context(), uid, 0)
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, list)
	}
}

func CreateSessionHandler(store *Store, pub notify.Publisher, hooks ...Hook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		var body struct {
			Subject   string `json:"subject"`
			Task      string `json:"task"`
			Duration  int    `json:"duration"`
			Timestamp string `json:"timestamp"`
		}
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Duration <= 0 {
			httpjson.Error(w, http.StatusBadRequest, "Duration is required")
			return
		}

		var occurred time.Time
		if body.Timestamp != "" {
			t, err := validate.ParseDate(body.Timestamp)
			if err != nil {
				httpjson.Error(w, http.StatusBadRequest, err.Error())
				return
			}
			occurred = t
		}

		sess, err := store.Create(r.Context(), Session{
			UserID:          uid,
			Subject:         body.Subject,
			Task:            body.Task,
			DurationMinutes: body.Duration,
			OccurredAt:      occurred,
		})
		if err != nil {
			log.Error().Err(err).Int("user_id", uid).Msg("create session failed")
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		pub.Publish(uid, notify.SessionCreated, sess)
		analytics.LogRequest(r, store.DB, uid, "study_session_logged", map[string]any{
			"session_id":       sess.ID,
			"duration_minutes": sess.DurationMinutes,
			"has_task":         sess.Task != "",
		})
		for _, h := range hooks {
			h(r.Context(), uid)
		}

		httpjson.Write(w, http.StatusCreated, sess)
	}
}
