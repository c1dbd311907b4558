package admin

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"studyflow-backend/internal/analytics"
	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/httpjson"
)

const MinPasswordLen = 6

type roleChange struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func UsersHandler(users *auth.Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context(), "")
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, "Server Error")
			return
		}
		httpjson.OK(w, list)
	}
}

func AdminsHandler(users *auth.Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context(), auth.RoleAdmin)
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, "Server Error")
			return
		}
		httpjson.OK(w, map[string]any{"admins": list, "count": len(list)})
	}
}

func AnalyticsHandler(users *auth.Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := Usage(r.Context(), users.DB, time.Now())
		if err != nil {
			log.Error().Err(err).Msg("admin usage summary failed")
			httpjson.Error(w, http.StatusInternalServerError, "Server Error")
			return
		}
		httpjson.OK(w, sum)
	}
}

// DeleteUserHandler removes a regular user and everything they own.
// Admins must be demoted first.
func DeleteUserHandler(users *auth.Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := lookupTarget(w, r, users)
		if !ok {
			return
		}
		if target.Role == auth.RoleAdmin {
			httpjson.Error(w, http.StatusForbidden, "Cannot delete admin users. Use demote-admin endpoint instead.")
			return
		}

		if err := users.DeleteData(r.Context(), target.ID, true); err != nil {
			log.Error().Err(err).Int("target_id", target.ID).Msg("admin delete user failed")
			httpjson.Error(w, http.StatusInternalServerError, "Server Error")
			return
		}

		uid, _ := auth.UserIDFromContext(r.Context())
		analytics.LogRequest(r, users.DB, uid, "admin_user_deleted", map[string]any{"target_id": target.ID})
		httpjson.OK(w, map[string]any{"success": true, "message": "User removed successfully"})
	}
}

// PromoteHandler grants the admin role. With superAdmin set only that
// username may change roles.
func PromoteHandler(users *auth.Users, superAdmin string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRoleChange(w, r, users, superAdmin) {
			return
		}
		target, ok := lookupTarget(w, r, users)
		if !ok {
			return
		}
		if target.Role == auth.RoleAdmin {
			httpjson.Error(w, http.StatusBadRequest, "User is already an admin")
			return
		}

		setRole(w, r, users, target, auth.RoleAdmin, "promoted to admin")
	}
}

// DemoteHandler revokes the admin role, never from the last admin.
func DemoteHandler(users *auth.Users, superAdmin string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRoleChange(w, r, users, superAdmin) {
			return
		}
		target, ok := lookupTarget(w, r, users)
		if !ok {
			return
		}
		if target.Role != auth.RoleAdmin {
			httpjson.Error(w, http.StatusBadRequest, "User is not an admin")
			return
		}

		n, err := users.Count(r.Context(), auth.RoleAdmin)
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, "Server Error")
			return
		}
		if n <= 1 {
			httpjson.Error(w, http.StatusForbidden, "Cannot demote the last admin. There must be at least one admin.")
			return
		}

		setRole(w, r, users, target, auth.RoleUser, "demoted to user")
	}
}

func PasswordHandler(users *auth.Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := httpjson.PathID(r)
		if !ok {
			httpjson.Error(w, http.StatusBadRequest, "Invalid user ID")
			return
		}

		var body struct {
			NewPassword string `json:"newPassword"`
		}
		if err := httpjson.Decode(r, &body); err != nil || len(body.NewPassword) < MinPasswordLen {
			httpjson.Error(w, http.StatusBadRequest, fmt.Sprintf("Password must be at least %d characters", MinPasswordLen))
			return
		}

		err := users.SetPassword(r.Context(), id, body.NewPassword)
		if errors.Is(err, auth.ErrUserNotFound) {
			httpjson.Error(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, "Server Error")
			return
		}

		uid, _ := auth.UserIDFromContext(r.Context())
		analytics.LogRequest(r, users.DB, uid, "admin_password_reset", map[string]any{"target_id": id})
		httpjson.OK(w, map[string]any{"message": "Password updated successfully"})
	}
}

func allowRoleChange(w http.ResponseWriter, r *http.Request, users *auth.Users, superAdmin string) bool {
	if superAdmin == "" {
		return true
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	caller, err := users.ByID(r.Context(), uid)
	if err != nil || caller.Username != superAdmin {
		httpjson.Error(w, http.StatusForbidden, "Only super admin can manage roles")
		return false
	}
	return true
}

func lookupTarget(w http.ResponseWriter, r *http.Request, users *auth.Users) (auth.User, bool) {
	id, ok := httpjson.PathID(r)
	if !ok {
		httpjson.Error(w, http.StatusBadRequest, "Invalid user ID")
		return auth.User{}, false
	}
	u, err := users.ByID(r.Context(), id)
	if errors.Is(err, auth.ErrUserNotFound) {
		httpjson.Error(w, http.StatusNotFound, "User not found")
		return auth.User{}, false
	}
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Server Error")
		return auth.User{}, false
	}
	return u, true
}

func setRole(w http.ResponseWriter, r *http.Request, users *auth.Users, target auth.User, role, verb string) {
	if err := users.SetRole(r.Context(), target.ID, role); err != nil {
		log.Error().Err(err).Int("target_id", target.ID).Str("role", role).Msg("admin role change failed")
		httpjson.Error(w, http.StatusInternalServerError, "Server Error")
		return
	}

	uid, _ := auth.UserIDFromContext(r.Context())
	analytics.LogRequest(r, users.DB, uid, "admin_role_changed", map[string]any{"target_id": target.ID, "role": role})
	httpjson.OK(w, map[string]any{
		"success": true,
		"message": target.Username + " " + verb,
		"user":    roleChange{Username: target.Username, Email: target.Email, Role: role},
	})
}
