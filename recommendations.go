package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/patra-app/matchrank/logging"
	"github.com/patra-app/matchrank/ranking"
)

var validate = validator.New()

// GET /api/recommendations/{userID}?count=N
func recommendationsHandler(rk *ranking.Ranker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if !allowActingAs(w, r, userID) {
			return
		}

		res, err := rk.Rank(r.Context(), userID, queryInt(r, "count", 0))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         true,
			"user_id":         res.UserID,
			"status":          res.Status,
			"count":           len(res.Candidates),
			"pool_size":       res.PoolSize,
			"recommendations": res.Candidates,
			"timestamp":       res.GeneratedAt,
		})
	}
}

type interactionRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
	Action   string `json:"action" validate:"required"`
}

// POST /api/interaction
func interactionHandler(rk *ranking.Ranker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		req.TargetID = strings.TrimSpace(req.TargetID)
		req.Action = strings.TrimSpace(req.Action)
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}
		if !allowActingAs(w, r, req.UserID) {
			return
		}

		res, err := rk.RecordInteraction(r.Context(), req.UserID, req.TargetID, req.Action)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         true,
			"user_id":         res.UserID,
			"target_id":       res.TargetID,
			"action":          res.Action,
			"timestamp":       res.Timestamp,
			"ratings_updated": res.RatingsUpdated,
			"warnings":        nonNil(res.Warnings),
		})
	}
}

// GET /api/users/{userID}/stats?days=N
func statsHandler(rk *ranking.Ranker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if !allowActingAs(w, r, userID) {
			return
		}
		st, err := rk.Stats(r.Context(), userID, queryInt(r, "days", 0))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": st})
	}
}

// POST /api/refresh rebuilds the bio corpus now instead of waiting for the
// refresher
func refreshHandler(rk *ranking.Ranker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := rk.RefreshCorpus(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		logging.Ctx(r.Context()).Info().Int("corpus_size", n).Msg("corpus refreshed on request")
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "corpus_size": n})
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
