package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"kakeibo/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentSession, Output: &buf})

	l.Debug("reloaded", FieldRecordCount, 3)
	l.WithComponent(ComponentWorker).Info("mirrored")

	out := buf.String()
	if !strings.Contains(out, "component=session") || !strings.Contains(out, "record_count=3") {
		t.Errorf("missing fields in %q", out)
	}
	if !strings.Contains(out, "component=worker") {
		t.Errorf("component not switched in %q", out)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))
	ctx := context.Background()

	sl.LogRecordChanged(ctx, OpCreate, core.ExpenseRecord{DateText: "2024/3/1", Category: "食費", Amount: "500", Description: "secret", Position: 4})
	sl.LogError(ctx, "reload failed", errors.New("boom"), ComponentSession, OpReload, nil)
	sl.LogHTTPEnd(ctx, httptest.NewRequest("GET", "/api/ledger?year=2024", nil), 503, 12, "127.0.0.1")

	out := buf.String()
	for _, want := range []string{"operation=create", "row=4", "category=食費", "error=boom", "status_code=503", "level=ERROR"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Errorf("description leaked into logs")
	}
}

func TestFromContext(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("fallback component = %q", l.Component())
	}
	l := New(Config{Component: ComponentHTTP, Output: &bytes.Buffer{}})
	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Errorf("logger not carried by context")
	}
}
