package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"pfw-hq/relay/pkg/config"
)

func testConfig() *config.ProxyConfig {
	return &config.ProxyConfig{
		ListenAddress:   "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		IdleTimeout:     5 * time.Second,
		ShutdownTimeout: 2 * time.Second,
		MaxHeaderBytes:  1 << 16,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
}

func TestEnsureRunning_Idempotent(t *testing.T) {
	s := NewServer(testConfig(), okHandler(), nil)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.EnsureRunning(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("EnsureRunning failed: %v", err)
		}
	}

	addr := s.Addr()
	if addr == "" || !s.IsRunning() {
		t.Fatal("Server should be running")
	}

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("Body = %q", body)
	}

	if err := s.EnsureRunning(context.Background()); err != nil || s.Addr() != addr {
		t.Errorf("Second EnsureRunning should keep the listener: %v %s", err, s.Addr())
	}
}

func TestEnsureRunning_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := testConfig()
	cfg.ListenAddress = ln.Addr().String()
	s := NewServer(cfg, okHandler(), nil)

	if err := s.EnsureRunning(context.Background()); err == nil {
		t.Fatal("Expected bind failure")
	}
	if s.IsRunning() {
		t.Error("Failed bind must leave the server stopped")
	}
	if err := s.Health(); err == nil {
		t.Error("Health should fail when stopped")
	}
}

func TestShutdown(t *testing.T) {
	s := NewServer(testConfig(), okHandler(), nil)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown of a stopped server should be a no-op: %v", err)
	}

	if err := s.EnsureRunning(context.Background()); err != nil {
		t.Fatalf("EnsureRunning failed: %v", err)
	}
	addr := s.Addr()
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if s.IsRunning() || s.Addr() != "" {
		t.Error("Server should be stopped")
	}
	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Error("Listener should be closed")
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	s := NewServer(testConfig(), okHandler(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !s.IsRunning() {
		t.Fatal("Server did not start")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if s.IsRunning() {
		t.Error("Server should be stopped")
	}
}
