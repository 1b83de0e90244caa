package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patra-app/matchrank/config"
	"github.com/patra-app/matchrank/model"
	"github.com/patra-app/matchrank/notify"
	"github.com/patra-app/matchrank/ranking"
	"github.com/patra-app/matchrank/store"
)

const testSecret = "test-secret-key-for-testing"

func testProfiles() []model.Profile {
	return []model.Profile{
		{ID: "U1", DisplayName: "Ann", Age: 30, Location: model.ParseLocation("Austin, TX"), Interests: model.NewTags("hiking", "music"), Bio: "trail running and coffee", Rating: 1200},
		{ID: "U2", DisplayName: "Ben", Age: 31, Location: model.ParseLocation("Austin, TX"), Interests: model.NewTags("hiking"), Bio: "coffee and trail running", Rating: 1200},
		{ID: "U3", DisplayName: "Cal", Age: 50, Location: model.ParseLocation("Boston, MA"), Rating: 1200},
	}
}

func newTestApp(t *testing.T, mutate ...func(*config.Config)) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Server.RateLimit = 0
	for _, m := range mutate {
		m(cfg)
	}
	a := &app{cfg: cfg, hub: notify.NewHub()}
	require.NoError(t, a.wire(store.NewMemory(testProfiles()...)))
	t.Cleanup(a.Close)
	return a
}

func withAuth(cfg *config.Config) {
	cfg.Auth.Enabled = true
	cfg.Auth.JWTSecret = testSecret
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := signToken([]byte(testSecret), userID, time.Hour)
	require.NoError(t, err)
	return tok
}

// ============================================================================
// RECOMMENDATIONS
// ============================================================================

func TestRecommendationsEndpoint(t *testing.T) {
	h := newTestApp(t).handler()

	t.Run("Ranked list", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/recommendations/U1", nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode(t, w)
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, "U1", resp["user_id"])
		assert.Equal(t, "ok", resp["status"])
		assert.EqualValues(t, 2, resp["count"])

		recs := resp["recommendations"].([]interface{})
		first := recs[0].(map[string]interface{})
		assert.Equal(t, "U2", first["candidate_id"])
		assert.Equal(t, "Ben", first["display_name"])
		assert.EqualValues(t, 1, first["rank"])
		assert.Contains(t, first, "score")
	})

	t.Run("Count parameter", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/recommendations/U1?count=1", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["count"])
	})

	t.Run("Malformed count falls back to default", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/recommendations/U1?count=lots", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 2, decode(t, w)["count"])
	})

	t.Run("Unknown user", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/recommendations/ghost", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "user_not_found", decode(t, w)["error"])
	})
}

// ============================================================================
// INTERACTIONS
// ============================================================================

func TestInteractionEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantError  string
	}{
		{"Like", map[string]string{"user_id": "U1", "target_id": "U2", "action": "like"}, http.StatusOK, ""},
		{"Superlike alias case", map[string]string{"user_id": "U1", "target_id": "U3", "action": "SuperLike"}, http.StatusOK, ""},
		{"Missing action", map[string]string{"user_id": "U1", "target_id": "U2"}, http.StatusBadRequest, "missing_fields"},
		{"Blank user", map[string]string{"user_id": "  ", "target_id": "U2", "action": "like"}, http.StatusBadRequest, "missing_fields"},
		{"Unknown action", map[string]string{"user_id": "U1", "target_id": "U2", "action": "wink"}, http.StatusBadRequest, "invalid_action"},
		{"Self", map[string]string{"user_id": "U1", "target_id": "U1", "action": "like"}, http.StatusBadRequest, "invalid_target"},
		{"Unknown target", map[string]string{"user_id": "U1", "target_id": "ghost", "action": "like"}, http.StatusNotFound, "user_not_found"},
		{"Bad JSON", "{not json", http.StatusBadRequest, "invalid_json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestApp(t).handler()
			w := doRequest(t, h, http.MethodPost, "/api/interaction", tt.body, "")
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			resp := decode(t, w)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp["error"])
				assert.Equal(t, false, resp["success"])
				return
			}
			assert.Equal(t, true, resp["success"])
			assert.Equal(t, true, resp["ratings_updated"])
			assert.Empty(t, resp["warnings"])
		})
	}
}

func TestRejectRemovesCandidate(t *testing.T) {
	h := newTestApp(t).handler()
	w := doRequest(t, h, http.MethodPost, "/api/interaction",
		map[string]string{"user_id": "U1", "target_id": "U2", "action": "pass"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dislike", decode(t, w)["action"])

	w = doRequest(t, h, http.MethodGet, "/api/recommendations/U1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	for _, rec := range decode(t, w)["recommendations"].([]interface{}) {
		assert.NotEqual(t, "U2", rec.(map[string]interface{})["candidate_id"])
	}
}

// ============================================================================
// STATS, REFRESH, PRESENCE, OPS
// ============================================================================

func TestStatsEndpoint(t *testing.T) {
	h := newTestApp(t).handler()
	doRequest(t, h, http.MethodPost, "/api/interaction", map[string]string{"user_id": "U1", "target_id": "U2", "action": "like"}, "")

	w := doRequest(t, h, http.MethodGet, "/api/users/U1/stats?days=7", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode(t, w)["stats"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["total_interactions"])
	assert.EqualValues(t, 1, stats["likes_given"])
	assert.EqualValues(t, 7, stats["days"])

	w = doRequest(t, h, http.MethodGet, "/api/users/ghost/stats", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsFromPersonalizationLog(t *testing.T) {
	h := newTestApp(t, func(cfg *config.Config) {
		cfg.Personalization.Enabled = true
		cfg.Personalization.Path = t.TempDir() + "/events.db"
	}).handler()
	doRequest(t, h, http.MethodPost, "/api/interaction", map[string]string{"user_id": "U2", "target_id": "U1", "action": "superlike"}, "")

	w := doRequest(t, h, http.MethodGet, "/api/users/U1/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)["stats"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["superlikes_received"])
}

func TestRefreshEndpoint(t *testing.T) {
	h := newTestApp(t).handler()
	w := doRequest(t, h, http.MethodPost, "/api/refresh", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["corpus_size"])
}

func TestPresenceEndpoint(t *testing.T) {
	a := newTestApp(t)
	_, cancel := a.hub.Subscribe("U2")
	defer cancel()

	w := doRequest(t, a.handler(), http.MethodGet, "/api/users/U2/online", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["online"])

	w = doRequest(t, a.handler(), http.MethodGet, "/api/users/U3/online", nil, "")
	assert.Equal(t, false, decode(t, w)["online"])
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestApp(t).handler()

	w := doRequest(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	doRequest(t, h, http.MethodGet, "/api/recommendations/U1", nil, "")
	w = doRequest(t, h, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "matchrank_recommendation_requests_total")
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestApp(t).handler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	h := newTestApp(t).handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/interaction", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	h := newTestApp(t, func(cfg *config.Config) { cfg.Server.RateLimit = 2 }).handler()
	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, doRequest(t, h, http.MethodGet, "/api/users/U1/online", nil, "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

// ============================================================================
// AUTHENTICATION
// ============================================================================

func TestAuthentication(t *testing.T) {
	h := newTestApp(t, withAuth).handler()

	t.Run("Missing token", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/recommendations/U1", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", decode(t, w)["error"])
	})

	t.Run("Bad signature", func(t *testing.T) {
		tok, err := signToken([]byte("other-secret"), "U1", time.Hour)
		require.NoError(t, err)
		w := doRequest(t, h, http.MethodGet, "/api/recommendations/U1", nil, tok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Expired token", func(t *testing.T) {
		tok, err := signToken([]byte(testSecret), "U1", -time.Minute)
		require.NoError(t, err)
		w := doRequest(t, h, http.MethodGet, "/api/recommendations/U1", nil, tok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Own recommendations", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/recommendations/U1", nil, tokenFor(t, "U1"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Someone else's recommendations", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/recommendations/U2", nil, tokenFor(t, "U1"))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "forbidden", decode(t, w)["error"])
	})

	t.Run("Interaction on behalf of another user", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPost, "/api/interaction",
			map[string]string{"user_id": "U2", "target_id": "U3", "action": "like"}, tokenFor(t, "U1"))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Token in query", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/users/U1/stats?token="+tokenFor(t, "U1"), nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Health stays public", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/health", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestParseTokenNumericUserID(t *testing.T) {
	tok, err := signToken([]byte(testSecret), "42", time.Hour)
	require.NoError(t, err)
	id, err := parseToken([]byte(testSecret), tok)
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	_, err = parseToken([]byte(testSecret), "garbage")
	assert.Error(t, err)
}

// ============================================================================
// ERROR MAPPING
// ============================================================================

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ranking.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
		{ranking.ErrInvalidAction, http.StatusBadRequest, "invalid_action"},
		{ranking.ErrInvalidTarget, http.StatusBadRequest, "invalid_target"},
		{fmt.Errorf("load: %w", ranking.ErrServiceUnavailable), http.StatusServiceUnavailable, "service_unavailable"},
		{fmt.Errorf("boom: %w", ranking.ErrInternal), http.StatusInternalServerError, "internal_error"},
		{fmt.Errorf("unexpected"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.Equal(t, tt.code, resp["error"])
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}

// ============================================================================
// WEBSOCKET EVENTS
// ============================================================================

func TestEventsWebSocket(t *testing.T) {
	a := newTestApp(t, withAuth)
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?token=" + tokenFor(t, "U2")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello notify.Event
	require.NoError(t, conn.ReadJSON(&hello))
	require.Eventually(t, func() bool { return a.hub.Connected("U2") == 1 }, time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(map[string]string{"user_id": "U1", "target_id": "U2", "action": "superlike"})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/interaction", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "U1"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt notify.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "superlike", evt.Type)
	assert.Equal(t, "U1", evt.From)
}

func TestEventsRequiresUser(t *testing.T) {
	h := newTestApp(t).handler()
	w := doRequest(t, h, http.MethodGet, "/ws/events", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// SERVICES
// ============================================================================

type countingRefresh struct{ calls atomic.Int32 }

func (c *countingRefresh) RefreshCorpus(context.Context) (int, error) {
	c.calls.Add(1)
	return 0, fmt.Errorf("not ready")
}

func TestCorpusRefresher(t *testing.T) {
	target := &countingRefresh{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- (&corpusRefresher{target: target, interval: 10 * time.Millisecond}).Serve(ctx) }()

	require.Eventually(t, func() bool { return target.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestHTTPServiceShutsDown(t *testing.T) {
	svc := &httpService{
		server:          &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()},
		shutdownTimeout: time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Equal(t, "http-server", svc.String())
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("CONFIG_PATH", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "U7", "--ttl", "1h"})
	require.NoError(t, cmd.Execute())

	id, err := parseToken([]byte(testSecret), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "U7", id)
}
