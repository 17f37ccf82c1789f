package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pfw-hq/relay/pkg/config"
)

// Server owns the relay's http.Server.
type Server struct {
	config     *config.ProxyConfig
	handler    http.Handler
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
	mu         sync.RWMutex
	isRunning  bool
}

// NewServer creates a server for handler. Nothing is bound until Start or
// EnsureRunning.
func NewServer(cfg *config.ProxyConfig, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:  cfg,
		handler: handler,
		logger:  logger.With("component", "server"),
	}
}

// EnsureRunning binds the listen address and serves in the background. It
// returns nil at once when the server is already running.
func (s *Server) EnsureRunning(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout(s.config.ReadTimeout),
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	serveErr := make(chan error, 1)

	s.httpServer = srv
	s.listener = ln
	s.serveErr = serveErr
	s.isRunning = true

	s.logger.Info("starting download proxy", "address", ln.Addr().String())

	go func() {
		err := srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			close(serveErr)
			return
		}
		s.logger.Error("download proxy stopped unexpectedly", "error", err)
		s.mu.Lock()
		if s.httpServer == srv {
			s.isRunning = false
		}
		s.mu.Unlock()
		serveErr <- fmt.Errorf("server error: %w", err)
		close(serveErr)
	}()

	return nil
}

// Start serves and blocks until ctx is cancelled, SIGINT or SIGTERM
// arrives, or the listener fails. It then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.EnsureRunning(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	serveErr := s.serveErr
	s.mu.RUnlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err, ok := <-serveErr:
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown stops accepting connections and waits for in-flight requests
// up to the shutdown timeout. Calling it on a stopped server is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	srv := s.httpServer
	s.isRunning = false
	s.mu.Unlock()

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("download proxy stopped")
	return nil
}

// IsRunning reports whether the listener is up.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound address, or "" when not running. Useful with a
// ":0" listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the served handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Health reports an error unless the listener is up.
func (s *Server) Health() error {
	if !s.IsRunning() {
		return fmt.Errorf("server is not running")
	}
	return nil
}

// readHeaderTimeout bounds header reads even when ReadTimeout is off.
func readHeaderTimeout(read time.Duration) time.Duration {
	if read > 0 && read < 10*time.Second {
		return read
	}
	return 10 * time.Second
}
