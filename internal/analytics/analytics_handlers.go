package analytics

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"studyflow-backend/internal/httpjson"
)

// AppOpenedHandler records an app_opened event for the signed-in user.
func AppOpenedHandler(dbx *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var body struct {
			ColdStart bool   `json:"cold_start"`
			From      string `json:"from"` // push/deeplink/icon/unknown
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		LogRequest(r, dbx, uid, "app_opened", map[string]any{
			"cold_start": body.ColdStart,
			"from":       body.From,
		})

		httpjson.OK(w, map[string]any{"ok": true})
	}
}
