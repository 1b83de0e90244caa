package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the key type for storing the authenticated user ID in context
type UserIDKey string

// UserIDKeyValue is the context key of the authenticated user ID
const UserIDKeyValue UserIDKey = "userID"

const userIDKey = UserIDKeyValue

// authenticate verifies the HS256 bearer token and stores its user_id claim
// in the request context. Browsers cannot set headers on websocket upgrades,
// so the token is also accepted from the "token" query parameter.
func authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			userID, err := parseToken(secret, tokenStr)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func parseToken(secret []byte, tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	}
	return "", fmt.Errorf("invalid user_id claim")
}

// signToken issues a token for userID. Used by the seeder and tests.
func signToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// authUserID returns the authenticated user, if any
func authUserID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(userIDKey).(string)
	return id, ok
}

// allowActingAs reports whether the caller may act as userID. Without
// authentication every caller may; otherwise the token must belong to userID.
func allowActingAs(w http.ResponseWriter, r *http.Request, userID string) bool {
	id, ok := authUserID(r)
	if !ok || id == userID {
		return true
	}
	writeError(w, http.StatusForbidden, "forbidden")
	return false
}
