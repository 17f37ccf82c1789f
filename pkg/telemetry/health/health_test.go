package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantCode   int
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: StatusReady,
			wantCode:   http.StatusOK,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"link_cache": func(context.Context) error { return nil },
				"credential": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
			wantCode:   http.StatusOK,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"link_cache": func(context.Context) error { return errors.New("database is locked") },
				"credential": func(context.Context) error { return nil },
			},
			wantStatus: StatusDegraded,
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, fn := range tt.checks {
				c.Register(name, fn)
			}

			rec := httptest.NewRecorder()
			c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d", tt.wantCode, rec.Code)
			}
			var status Status
			if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("Expected status %q, got %q", tt.wantStatus, status.Status)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("Expected %d check results, got %d", len(tt.checks), len(status.Checks))
			}
		})
	}
}

func TestReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := c.Readiness(context.Background())
	if status.Status != StatusDegraded {
		t.Fatalf("Expected degraded, got %q", status.Status)
	}
	if got := status.Checks["slow"].Message; got != "health check timeout" {
		t.Errorf("Expected timeout message, got %q", got)
	}
}

func TestLivenessHandler(t *testing.T) {
	c := New(0)

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodHead, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD: code=%d body=%q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: expected 405, got %d", rec.Code)
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.0", "abc123", "2026-01-01")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if info.Version != "1.2.0" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("Unexpected version info: %+v", info)
	}
}

func TestNames(t *testing.T) {
	c := New(0)
	c.Register("upstream", func(context.Context) error { return nil })
	c.Register("link_cache", func(context.Context) error { return nil })

	if got := c.Names(); !reflect.DeepEqual(got, []string{"link_cache", "upstream"}) {
		t.Errorf("Unexpected names: %v", got)
	}
}
