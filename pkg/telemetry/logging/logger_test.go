package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("upstream call",
		"api_key", "super-secret-key",
		"Authorization", "Bearer abc.def.ghi",
		"detail", "sent Bearer abc.def.ghi upstream",
		"host", "api.uspto.gov",
	)

	out := buf.String()
	for _, leaked := range []string{"super-secret-key", "abc.def.ghi"} {
		if strings.Contains(out, leaked) {
			t.Errorf("Log output leaks %q: %s", leaked, out)
		}
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if entry["api_key"] != Fingerprint("super-secret-key") {
		t.Errorf("Expected fingerprint, got %v", entry["api_key"])
	}
	if entry["host"] != "api.uspto.gov" {
		t.Errorf("Non-sensitive attribute altered: %v", entry["host"])
	}
}

func TestNew_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept")

	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "msg=kept") {
		t.Errorf("Unexpected output: %q", buf.String())
	}

	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("Expected error for invalid level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("Expected error for invalid format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestRedactPath(t *testing.T) {
	tests := map[string]string{
		"/Q2hhbmdlTWUxMjM0NTY3OA/ABST.pdf": "/Q2hh…/ABST.pdf",
		"/health":                          "/health",
		"/abc/x.pdf":                       "/abc/x.pdf",
	}
	for in, want := range tests {
		if got := RedactPath(in); got != want {
			t.Errorf("RedactPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithRequestID(context.Background(), "req-1")
	if GetRequestID(ctx) != "req-1" {
		t.Fatalf("Expected req-1, got %q", GetRequestID(ctx))
	}

	FromContext(ctx, base).Info("hello")
	if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
		t.Errorf("Expected request_id in output: %s", buf.String())
	}
}
