package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatFollowsEnvironment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        string
	}{
		{name: "production emits json", environment: "production", want: `"msg":"search served"`},
		{name: "development is pretty", environment: "development", want: "INF"},
		{name: "staging is pretty", environment: "staging", want: "INF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Writer: &buf, Environment: tt.environment, Level: slog.LevelInfo})

			log.Info("search served", "query", "dune")

			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "dune")
		})
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json", Level: slog.LevelWarn})

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"verbose": slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.With("scope", "library:u1").WithGroup("move").Debug("planned", "item_id", "lb-1", "title", "Dune Messiah")

	out := buf.String()
	assert.Contains(t, out, "DBG")
	assert.Contains(t, out, "scope=library:u1")
	assert.Contains(t, out, "move.item_id=lb-1")
	assert.Contains(t, out, `move.title="Dune Messiah"`)
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json"})

	log.WithError(errors.New("upstream 503")).Warn("fallback failed")
	assert.Contains(t, buf.String(), `"error":"upstream 503"`)

	assert.Same(t, log, log.WithError(nil))
}
