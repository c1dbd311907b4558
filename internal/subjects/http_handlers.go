package subjects

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog/log"

	"studyflow-backend/internal/analytics"
	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/httpjson"
	"studyflow-backend/internal/notify"
	"studyflow-backend/internal/validate"
)

func GetSubjectsHandler(store *Store) http.HandlerFunc {
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

func CreateSubjectHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		var body Subject
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(body.Name) == "" {
			httpjson.Error(w, http.StatusBadRequest, "Name is required")
			return
		}
		var errs criterio.FieldErrorsBuilder
		if body.TargetHours < 0 {
			errs = errs.Append("targetHours", errors.New("must not be negative"))
		}
		if err := criterio.ValidateStruct(
			validate.PriorityField("priority", body.Priority),
			errs.ToError(),
		); err != nil {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		body.UserID = uid
		sub, err := store.Create(r.Context(), body)
		if err != nil {
			log.Error().Err(err).Int("user_id", uid).Msg("create subject failed")
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		pub.Publish(uid, notify.SubjectCreated, sub)
		analytics.LogRequest(r, store.DB, uid, "subject_created", map[string]any{
			"subject_id":   sub.ID,
			"category":     sub.Category,
			"target_hours": sub.TargetHours,
		})

		httpjson.Write(w, http.StatusCreated, sub)
	}
}

func UpdateSubjectHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		id, ok := httpjson.PathID(r)
		if !ok {
			httpjson.Error(w, http.StatusBadRequest, "Invalid subject ID")
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

		sub, err := store.Update(r.Context(), uid, id, p)
		if errors.Is(err, ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "Subject not found")
			return
		}
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		pub.Publish(uid, notify.SubjectUpdated, sub)
		httpjson.OK(w, sub)
	}
}

// DeleteSubjectHandler deletes by name; the {name} path value arrives unescaped.
func DeleteSubjectHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		name := r.PathValue("name")

		err := store.DeleteByName(r.Context(), uid, name)
		if errors.Is(err, ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "Subject not found")
			return
		}
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		pub.Publish(uid, notify.SubjectDeleted, name)
		httpjson.OK(w, map[string]any{"message": "Subject removed"})
	}
}

func OverviewHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		ov, err := store.Overview(r.Context(), uid)
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, ov)
	}
}
