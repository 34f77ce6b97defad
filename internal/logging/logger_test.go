package logging

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"scenematch/internal/services"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleHandlerRendersComponentPrefix(t *testing.T) {
	var b strings.Builder
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&b, levelVar)).With(String(FieldComponent, "scoring"))

	logger.Info("scored candidate", Float64("similarity", 0.91))

	out := b.String()
	if !strings.Contains(out, "[scoring]") {
		t.Fatalf("expected component prefix in %q", out)
	}
	if !strings.Contains(out, "similarity=0.91") {
		t.Fatalf("expected attribute in %q", out)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var b strings.Builder
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&b, levelVar))

	ctx := services.WithItemID(context.Background(), 7)
	ctx = services.WithStage(ctx, "decision")
	WithContext(ctx, logger).Info("decided")

	out := b.String()
	if !strings.Contains(out, "item_id=7") || !strings.Contains(out, "stage=decision") {
		t.Fatalf("expected context fields in %q", out)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled at every level")
	}
}
