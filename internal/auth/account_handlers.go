package auth

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"studyflow-backend/internal/httpjson"
)

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// stateless JWT: the client drops the token
		httpjson.OK(w, map[string]any{"ok": true})
	}
}

func ProfileHandler(users *Users) http.HandlerFunc {
	return MeHandler(users)
}

func UpdateProfileHandler(users *Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		var body struct {
			FirstName    string `json:"firstName"`
			LastName     string `json:"lastName"`
			ProfileImage string `json:"profileImage"`
		}
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		u, err := users.UpdateProfile(r.Context(), uid, body.FirstName, body.LastName, body.ProfileImage)
		if errors.Is(err, ErrUserNotFound) {
			httpjson.Error(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, u)
	}
}

func DeleteAccountHandler(users *Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		err := users.DeleteData(r.Context(), uid, true)
		if errors.Is(err, ErrUserNotFound) {
			httpjson.Error(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Int("user_id", uid).Msg("delete account failed")
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, map[string]any{"message": "User account and all data deleted"})
	}
}

func ClearDataHandler(users *Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		if err := users.DeleteData(r.Context(), uid, false); err != nil {
			log.Error().Err(err).Int("user_id", uid).Msg("clear data failed")
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, map[string]any{"message": "All user data cleared successfully"})
	}
}
