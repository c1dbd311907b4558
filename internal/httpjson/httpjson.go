// Package httpjson holds the JSON request/response helpers shared by the handlers.
package httpjson

import (
	"encoding/json"
	"net/http"
	"strconv"
)

func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, v any) {
	Write(w, http.StatusOK, v)
}

// Error writes {"message": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	Write(w, status, map[string]any{"message": msg})
}

func Decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// PathID parses the {id} path value.
func PathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
