package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_Formats(t *testing.T) {
	var buf bytes.Buffer

	New(&buf, "info", "json").Info("published", "entry_id", "e1")
	assert.Contains(t, buf.String(), `"entry_id":"e1"`)

	buf.Reset()
	New(&buf, "info", "text").Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestFromContext(t *testing.T) {
	fallback := slog.Default()
	scoped := slog.Default().With("request_id", "r1")

	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.Same(t, scoped, FromContext(WithLogger(context.Background(), scoped), fallback))
}
