package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/patra-app/matchrank/config"
	"github.com/patra-app/matchrank/notify"
	"github.com/patra-app/matchrank/ranking"
	"github.com/patra-app/matchrank/store"
)

type routerDeps struct {
	cfg    *config.Config
	store  store.ProfileStore
	ranker *ranking.Ranker
	hub    *notify.Hub
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(withCORS(d.cfg.Server.CORSOrigins))

	// Health check endpoint for container probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if d.cfg.Auth.Enabled {
			r.Use(authenticate([]byte(d.cfg.Auth.JWTSecret)))
		}
		r.Use(loaderMiddleware(d.store))

		r.Route("/api", func(r chi.Router) {
			r.Use(rateLimit(d.cfg.Server.RateLimit))
			r.Get("/recommendations/{userID}", recommendationsHandler(d.ranker))
			r.Post("/interaction", interactionHandler(d.ranker))
			r.Get("/users/{userID}/stats", statsHandler(d.ranker))
			r.Get("/users/{userID}/online", presenceHandler(d.hub))
			r.Post("/refresh", refreshHandler(d.ranker))
		})
		r.Get("/ws/events", eventsHandler(d.hub))
	})
	return r
}
