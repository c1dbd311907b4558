package achievements

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog/log"

	"studyflow-backend/internal/analytics"
	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/httpjson"
	"studyflow-backend/internal/notify"
	"studyflow-backend/internal/validate"
)

func GetAchievementsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		if err := store.EnsureDefaults(r.Context(), uid); err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
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

func CreateAchievementHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		var body Achievement
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		var errs criterio.FieldErrorsBuilder
		if body.CriteriaValue <= 0 {
			errs = errs.Append("criteriaValue", errors.New("must be positive"))
		}
		if body.Rarity != "" {
			if err := validate.OneOf(Rarities...)(body.Rarity); err != nil {
				errs = errs.Append("rarity", err)
			}
		}
		if err := criterio.ValidateStruct(
			validate.RequiredField("title", body.Title),
			validate.RequiredField("description", body.Description),
			criterio.Run("category", body.Category, validate.OneOf(Categories...)),
			criterio.Run("criteriaType", body.CriteriaType, validate.OneOf(Criteria...)),
			errs.ToError(),
		); err != nil {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		body.UserID = uid
		a, err := store.Create(r.Context(), body)
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.Write(w, http.StatusCreated, a)
	}
}

func EvaluateHandler(store *Store, pub notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		unlocked, err := store.Evaluate(r.Context(), uid, time.Now())
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		announce(r.Context(), store, pub, uid, unlocked)

		if unlocked == nil {
			unlocked = []Achievement{}
		}
		httpjson.OK(w, map[string]any{"unlocked": unlocked})
	}
}

// EvaluateHook re-checks achievements after new study activity. Failures are logged only.
func EvaluateHook(store *Store, pub notify.Publisher) func(ctx context.Context, userID int) {
	return func(ctx context.Context, userID int) {
		unlocked, err := store.Evaluate(ctx, userID, time.Now())
		if err != nil {
			log.Warn().Err(err).Int("user_id", userID).Msg("achievement evaluation failed")
			return
		}
		announce(ctx, store, pub, userID, unlocked)
	}
}

func announce(ctx context.Context, store *Store, pub notify.Publisher, userID int, unlocked []Achievement) {
	for _, a := range unlocked {
		pub.Publish(userID, notify.AchievementUnlocked, a)
		_ = analytics.Log(ctx, store.DB, analytics.Envelope{UserID: userID}, "achievement_unlocked", map[string]any{
			"achievement_id": a.ID,
			"criteria_type":  a.CriteriaType,
			"rarity":         a.Rarity,
		}, "")
	}
}
