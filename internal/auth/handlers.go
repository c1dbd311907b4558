package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"studyflow-backend/internal/db"
	"studyflow-backend/internal/httpjson"
)

func RegisterHandler(users *Users, tokens Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username  string `json:"username"`
			Email     string `json:"email"`
			Password  string `json:"password"`
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		}
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		body.Username = strings.TrimSpace(body.Username)
		body.Email = strings.TrimSpace(body.Email)
		if body.Username == "" || body.Email == "" || body.Password == "" {
			httpjson.Error(w, http.StatusBadRequest, "Username, email, and password are required")
			return
		}

		exists, err := users.Exists(r.Context(), body.Username, body.Email)
		if err != nil {
			log.Error().Err(err).Msg("register: lookup failed")
			httpjson.Error(w, http.StatusInternalServerError, "Server error during registration")
			return
		}
		if exists {
			httpjson.Error(w, http.StatusBadRequest, "User or Email already exists")
			return
		}

		u, err := users.Create(r.Context(), User{
			Username:  body.Username,
			Email:     body.Email,
			FirstName: body.FirstName,
			LastName:  body.LastName,
		}, body.Password)
		if err != nil {
			if db.IsUniqueViolation(err) {
				httpjson.Error(w, http.StatusBadRequest, "User or Email already exists")
				return
			}
			log.Error().Err(err).Msg("register: insert failed")
			httpjson.Error(w, http.StatusInternalServerError, "Server error during registration")
			return
		}

		token, err := tokens.Generate(u.ID, u.Role)
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, "Server error during registration")
			return
		}

		log.Info().Int("user_id", u.ID).Msg("user registered")
		httpjson.Write(w, http.StatusCreated, map[string]any{
			"id":       u.ID,
			"username": u.Username,
			"email":    u.Email,
			"token":    token,
		})
	}
}

func LoginHandler(users *Users, tokens Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		u, err := users.ByLogin(r.Context(), strings.TrimSpace(body.Username))
		if err != nil {
			if !errors.Is(err, ErrUserNotFound) {
				log.Error().Err(err).Msg("login: lookup failed")
				httpjson.Error(w, http.StatusInternalServerError, "Server error during login")
				return
			}
			httpjson.Error(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		if !CheckPassword(u.Password, body.Password) {
			httpjson.Error(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}

		token, err := tokens.Generate(u.ID, u.Role)
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, "Server error during login")
			return
		}

		httpjson.OK(w, map[string]any{
			"user":  u,
			"token": token,
		})
	}
}

func MeHandler(users *Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		u, err := users.ByID(r.Context(), uid)
		if err != nil {
			httpjson.Error(w, http.StatusNotFound, "User not found")
			return
		}
		httpjson.OK(w, u)
	}
}
