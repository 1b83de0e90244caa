package main

import (
	"net/http"

	"github.com/go-chi/cors"
)

// The frontend runs on a different origin, so browsers need CORS headers
// on every API response, including preflights.

func withCORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
