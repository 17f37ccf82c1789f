// Package hubclient lets a sibling server register documents with the
// relay hub.
//
// A sibling that cannot serve downloads itself registers each document
// descriptor over loopback and hands the returned token URL to its users.
// Requests carry a short-lived service token minted from the shared
// secret, scoped to the one document being registered.
package hubclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pfw-hq/relay/pkg/proxy/types"
	"pfw-hq/relay/pkg/security/siblingauth"
	"pfw-hq/relay/pkg/telemetry/tracing"
)

// ErrRejected is returned when the hub refuses a registration.
var ErrRejected = errors.New("registration rejected by hub")

// HubError carries the hub's status and message.
type HubError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *HubError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%v: %d %s (request %s)", ErrRejected, e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("%v: %d %s", ErrRejected, e.StatusCode, e.Message)
}

func (e *HubError) Unwrap() error { return ErrRejected }

// Registration describes one document to register.
type Registration struct {
	// Source is the sibling's source tag, e.g. "fpd".
	Source string

	Key         string
	DocumentID  string
	DownloadURL string

	// Filename is optional; the hub derives one when empty.
	Filename    string
	ContentType string
	Attributes  map[string]string
}

// RegistrationResult is the hub's answer.
type RegistrationResult struct {
	TokenURL  string
	Reused    bool
	ExpiresAt time.Time
}

// Config configures a Client.
type Config struct {
	// HubURL is the relay's base URL, e.g. "http://127.0.0.1:8080".
	HubURL string

	// Timeout bounds each call. Default: 10 seconds
	Timeout time.Duration

	// Transport replaces the default transport, mainly for tests.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// Client registers documents with a hub.
type Client struct {
	hub    string
	signer *siblingauth.Signer
	http   *http.Client
	logger *slog.Logger
}

// New creates a client that signs requests with signer.
func New(cfg Config, signer *siblingauth.Signer) (*Client, error) {
	u, err := url.Parse(cfg.HubURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid hub url %q", cfg.HubURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		hub:    strings.TrimRight(cfg.HubURL, "/"),
		signer: signer,
		http:   &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		logger: cfg.Logger.With("component", "hubclient"),
	}, nil
}

// Register pushes reg to the hub and returns the link it issued.
func (c *Client) Register(ctx context.Context, reg Registration) (*RegistrationResult, error) {
	if reg.Source == "" {
		return nil, errors.New("source is required")
	}

	token, err := c.signer.Mint(ctx, reg.Source, siblingauth.DocClaims{
		Key:        reg.Key,
		DocumentID: reg.DocumentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mint service token: %w", err)
	}

	body, err := json.Marshal(types.RegistrationRequest{
		Key:         reg.Key,
		DocumentID:  reg.DocumentID,
		DownloadURL: reg.DownloadURL,
		Filename:    reg.Filename,
		ContentType: reg.ContentType,
		Attributes:  reg.Attributes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration: %w", err)
	}

	endpoint := c.hub + "/register/" + url.PathEscape(reg.Source)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	tracing.Inject(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hub unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read hub response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		hubErr := &HubError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errBody types.ErrorResponse
		if json.Unmarshal(data, &errBody) == nil && errBody.Error.Message != "" {
			hubErr.Message = errBody.Error.Message
			hubErr.RequestID = errBody.Error.RequestID
		}
		c.logger.Warn("registration rejected",
			"source", reg.Source,
			"status", resp.StatusCode,
			"request_id", hubErr.RequestID,
		)
		return nil, hubErr
	}

	var out types.RegistrationResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("malformed hub response: %w", err)
	}
	if !out.Success || out.TokenURL == "" {
		return nil, fmt.Errorf("%w: hub returned no token url", ErrRejected)
	}

	c.logger.Debug("document registered", "source", reg.Source, "reused", out.Reused)
	return &RegistrationResult{
		TokenURL:  out.TokenURL,
		Reused:    out.Reused,
		ExpiresAt: out.ExpiresAt,
	}, nil
}
