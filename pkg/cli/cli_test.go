package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pfw-hq/relay/pkg/config"
)

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "proxy.listen_address",
		Message: "missing required field",
	}

	expected := "config error in proxy.listen_address: missing required field"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if got := NewConfigError("", "boom").Error(); got != "config error: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := NewCommandError("run", underlying)

	if err.Error() != "command run failed: underlying error" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, underlying) {
		t.Error("CommandError should unwrap to the underlying error")
	}
}

func TestConfigErrors(t *testing.T) {
	verr := config.ValidationError{Errors: []config.FieldError{
		{Field: "rate_limit.requests", Message: "must be positive"},
		{Field: "proxy.startup", Message: "unknown mode"},
	}}

	got := ConfigErrors(fmt.Errorf("load: %w", verr))
	if len(got) != 2 || got[0].Field != "rate_limit.requests" || got[1].Field != "proxy.startup" {
		t.Errorf("Unexpected errors: %+v", got)
	}

	plain := ConfigErrors(errors.New("file not found"))
	if len(plain) != 1 || plain[0].Field != "" {
		t.Errorf("Unexpected errors: %+v", plain)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config error", NewConfigError("f", "m"), ExitConfig},
		{"validation error", fmt.Errorf("x: %w", config.ValidationError{}), ExitConfig},
		{"command error", NewCommandError("run", errors.New("boom")), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatText, "TEXT": FormatText, "json": FormatJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("csv"); err == nil {
		t.Error("Expected error for csv")
	}
}

func TestTextFormatter_Rows(t *testing.T) {
	buf := &bytes.Buffer{}
	err := NewFormatter(FormatText).FormatTo(buf, Rows{
		{Key: "active", Value: "12"},
		{Key: "ttl", Value: "168h0m0s"},
	})
	if err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %q", buf.String())
	}
	if strings.Index(lines[0], "12") != strings.Index(lines[1], "168h") {
		t.Errorf("Values not aligned:\n%s", buf.String())
	}
}

func TestTextFormatter_Plain(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, "http://localhost:8080/abc/ABST.pdf"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "http://localhost:8080/abc/ABST.pdf\n" {
		t.Errorf("FormatTo() = %q", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewFormatter(FormatJSON).FormatTo(buf, Rows{{Key: "removed", Value: "3"}}); err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil || got["removed"] != "3" {
		t.Errorf("Unexpected JSON %q: %v", buf.String(), err)
	}

	buf.Reset()
	data := struct {
		Expires time.Time `json:"expires"`
	}{time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	if err := (&JSONFormatter{}).FormatTo(buf, data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"expires":"2025-01-02T03:04:05Z"`) {
		t.Errorf("Unexpected JSON %q", buf.String())
	}
}

func TestSetupSignalHandler(t *testing.T) {
	ctx, stop := SetupSignalHandler()

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be cancelled initially")
	default:
	}

	stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("stop should cancel the context")
	}
}
