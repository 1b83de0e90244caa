package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.Disabled, parseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("nonsense"))
}

func TestCtxAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{Level: "info"}) })

	ctx := ContextWithRequestID(context.Background(), "req-123")
	Ctx(ctx).Info().Str("user_id", "U1").Msg("served")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "U1", entry["user_id"])
	assert.Equal(t, "served", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestRequestIDFromEmptyContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.NotEmpty(t, NewRequestID())
}
