package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()
	l := Discard()
	ctx := WithLogger(context.Background(), l)

	if got := FromContext(ctx); got != l {
		t.Error("FromContext did not return the stored logger")
	}
	if got := FromContext(context.Background()); got != slog.Default() {
		t.Error("FromContext without a logger should return slog.Default")
	}

	fallback := Discard()
	if got := FromContextOr(ctx, fallback); got != l {
		t.Error("FromContextOr preferred the fallback over the stored logger")
	}
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Error("FromContextOr without a logger should return the fallback")
	}
}

func TestNewWriter(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "TEXT")

	var buf bytes.Buffer
	log := NewWriter(&buf)
	log.Info("dropped")
	log.Warn("kept", slog.Int("questions", 3))

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info record written at LOG_LEVEL=warn: %s", out)
	}
	for _, want := range []string{"level=WARN", "msg=kept", "service=prepai", "questions=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}
