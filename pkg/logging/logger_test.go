package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/clemm/pkg/memory"
)

func TestJSONOutputCarriesFieldsAndConversation(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithJSON(), WithLevel("debug"))

	ctx := memory.WithConversationID(context.Background(), "conv-1")
	logger.Info(ctx, "Tool dispatched", map[string]interface{}{"tool": "fire_laser"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Tool dispatched", entry["message"])
	assert.Equal(t, "fire_laser", entry["tool"])
	assert.Equal(t, "conv-1", entry["conversation_id"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithJSON(), WithLevel("warn"))

	logger.Debug(context.Background(), "hidden", nil)
	logger.Info(context.Background(), "hidden", nil)
	assert.Zero(t, buf.Len())

	logger.Warn(context.Background(), "shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestNopDiscards(t *testing.T) {
	logger := NewNop()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), "ignored", map[string]interface{}{"k": 1})
	})
}
