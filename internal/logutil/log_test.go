package logutil

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", false)
	ctx := WithLogger(context.Background(), logger)

	l := GetOrDefault(ctx)
	l.Info().Str("component", "test").Msg("hello")
	l.Debug().Msg("filtered")

	out := buf.String()
	if !strings.Contains(out, `"component":"test"`) || !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("log output = %q", out)
	}
	if strings.Contains(out, "filtered") {
		t.Errorf("debug line written at info level: %q", out)
	}
}

func TestGetOrDefault_Global(t *testing.T) {
	got := GetOrDefault(context.Background())
	if got.GetLevel() != log.Logger.GetLevel() {
		t.Errorf("level = %v, want the global logger's", got.GetLevel())
	}
}
