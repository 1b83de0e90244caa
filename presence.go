package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/patra-app/matchrank/notify"
)

// GET /ws/events streams like and superlike events addressed to the caller.
// With auth disabled the user is taken from ?user_id=.
func eventsHandler(hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authUserID(r)
		if !ok {
			userID = r.URL.Query().Get("user_id")
		}
		if userID == "" {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}
		hub.ServeWS(w, r, userID)
	}
}

// GET /api/users/{userID}/online reports whether the user has an open event stream
func presenceHandler(hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		n := hub.Connected(userID)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user_id":     userID,
			"online":      n > 0,
			"connections": n,
		})
	}
}
