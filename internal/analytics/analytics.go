// Package analytics keeps the product event trail in analytics_events.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type ctxKey string

const userIDKey ctxKey = "analytics_user_id"

// Execer is the part of *sql.DB the event log needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Envelope is the client metadata stored next to every event.
type Envelope struct {
	UserID       int
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

var platforms = map[string]bool{"ios": true, "android": true, "web": true}

// FromRequest reads the envelope headers. Unknown platforms collapse to "unknown".
func FromRequest(r *http.Request) Envelope {
	header := func(k string) string { return strings.TrimSpace(r.Header.Get(k)) }

	env := Envelope{
		SessionID:    header("X-Session-Id"),
		Platform:     strings.ToLower(header("X-Platform")),
		AppVersion:   header("X-App-Version"),
		DeviceLocale: header("Accept-Language"),
	}
	if !platforms[env.Platform] {
		env.Platform = "unknown"
	}
	if env.DeviceLocale == "" {
		env.DeviceLocale = header("X-Device-Locale")
	}
	return env
}

func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (int, bool) {
	uid, ok := ctx.Value(userIDKey).(int)
	return uid, ok
}

// SourceEventKeyFromRequest returns the client idempotency key, if any.
// A repeated key makes the insert a no-op.
func SourceEventKeyFromRequest(r *http.Request) string {
	for _, h := range []string{"Idempotency-Key", "X-Source-Event-Key"} {
		if k := strings.TrimSpace(r.Header.Get(h)); k != "" {
			return k
		}
	}
	return ""
}

// Log writes one event. Events without a user are skipped. Props must not
// carry raw user text. Insert failures are logged and never returned, so a
// caller can ignore the result.
func Log(ctx context.Context, db Execer, env Envelope, eventName string, props any, sourceEventKey string) error {
	if eventName == "" || db == nil {
		return nil
	}
	if env.UserID == 0 {
		uid, ok := UserIDFromContext(ctx)
		if !ok {
			return nil
		}
		env.UserID = uid
	}
	if env.Platform == "" {
		env.Platform = "unknown"
	}

	b, err := json.Marshal(props)
	if err != nil {
		log.Warn().Err(err).Str("event", eventName).Msg("analytics props not encodable")
		return nil
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO analytics_events (event_name, event_time, user_id, session_id, platform, app_version, device_locale, source_event_key, properties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_event_key) DO NOTHING
	`, eventName, time.Now().UTC(), env.UserID, optional(env.SessionID), env.Platform, env.AppVersion,
		optional(env.DeviceLocale), optional(sourceEventKey), string(b))
	if err != nil {
		log.Warn().Err(err).Str("event", eventName).Int("user_id", env.UserID).Msg("analytics insert failed")
	}
	return nil
}

// LogRequest is Log with the envelope and idempotency key taken from r.
func LogRequest(r *http.Request, db Execer, userID int, eventName string, props any) {
	env := FromRequest(r)
	env.UserID = userID
	_ = Log(r.Context(), db, env, eventName, props, SourceEventKeyFromRequest(r))
}

func optional(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
