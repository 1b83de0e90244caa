package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/patra-app/matchrank/logging"
	"github.com/patra-app/matchrank/ranking"
)

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

// writeServiceError maps a ranking error to its status and code. Internal
// messages are logged, never returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, ranking.ErrUserNotFound):
		status, code = http.StatusNotFound, "user_not_found"
	case errors.Is(err, ranking.ErrInvalidAction):
		status, code = http.StatusBadRequest, "invalid_action"
	case errors.Is(err, ranking.ErrInvalidTarget):
		status, code = http.StatusBadRequest, "invalid_target"
	case errors.Is(err, ranking.ErrServiceUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	}

	ev := logging.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		ev = logging.Ctx(r.Context()).Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeError(w, status, code)
}

// queryInt reads an integer query parameter. Missing or malformed values
// yield def.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
