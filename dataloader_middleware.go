package main

import (
	"net/http"

	"github.com/patra-app/matchrank/store"
)

// loaderMiddleware injects a fresh profile loader into every request so
// lookups made while serving it are batched and cached together
func loaderMiddleware(s store.ProfileStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := store.WithLoader(r.Context(), store.NewLoader(s))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
