package auth

import (
	"context"
	"net/http"
	"strings"

	"studyflow-backend/internal/analytics"
	"studyflow-backend/internal/httpjson"
)

type ctxKey string

const (
	userIDKey ctxKey = "user_id"
	roleKey   ctxKey = "role"
)

type Middleware struct {
	secret []byte
	users  *Users
}

func New(secret []byte, users *Users) Middleware {
	return Middleware{secret: secret, users: users}
}

func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		claims, err := ParseToken(m.secret, strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}

		next(w, r.WithContext(WithClaims(r.Context(), claims)))
	}
}

// Admin requires a valid token whose user currently holds the admin role.
// The role is re-read from the database so demotions apply immediately.
func (m Middleware) Admin(next http.HandlerFunc) http.HandlerFunc {
	return m.Wrap(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		u, err := m.users.ByID(r.Context(), uid)
		if err != nil || u.Role != RoleAdmin {
			httpjson.Error(w, http.StatusForbidden, "Not authorized as an admin")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), roleKey, u.Role)))
	})
}

// WithClaims stores the identity on ctx and mirrors the user id into the analytics context.
func WithClaims(ctx context.Context, c Claims) context.Context {
	ctx = context.WithValue(ctx, userIDKey, c.UserID)
	ctx = context.WithValue(ctx, roleKey, c.Role)
	return analytics.WithUserID(ctx, c.UserID)
}

func UserIDFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return 0, false
	}
	uid, ok := v.(int)
	return uid, ok
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}
