package upstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"pfw-hq/relay/pkg/docstore"
)

// DefaultAuthHeader is the header carrying the API key.
const DefaultAuthHeader = "X-API-KEY"

// CredentialSource supplies the upstream API key at call time, so a rotated
// key takes effect without a restart.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root used for document lookups.
	BaseURL string

	// Hosts limits where the credential may be sent.
	Hosts docstore.HostPolicy

	// AuthHeader names the credential header. Default: X-API-KEY
	AuthHeader string

	// Timeout bounds connection setup and the wait for response headers.
	// The body stream is bounded by the caller's context instead.
	// Default: 30 seconds
	Timeout time.Duration

	UserAgent string

	// TLS configures the default transport. Nil uses Go's defaults.
	TLS *tls.Config

	// Transport replaces the default transport, mainly for tests.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// Document is a streaming upstream response.
type Document struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Client fetches documents from the upstream API.
type Client struct {
	http       *http.Client
	baseURL    string
	hosts      docstore.HostPolicy
	authHeader string
	userAgent  string
	creds      CredentialSource
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, creds CredentialSource) *Client {
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = DefaultAuthHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "pfw-relay"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:       cfg.TLS,
			TLSHandshakeTimeout:   cfg.Timeout,
			ResponseHeaderTimeout: cfg.Timeout,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
		}
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		hosts:      cfg.Hosts,
		authHeader: cfg.AuthHeader,
		userAgent:  cfg.UserAgent,
		creds:      creds,
		logger:     cfg.Logger.With("component", "upstream"),
	}
	c.http = &http.Client{
		Transport:     transport,
		CheckRedirect: c.checkRedirect,
	}
	return c
}

// checkRedirect strips the credential when a redirect leaves the allowed hosts.
func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 5 {
		return errors.New("stopped after 5 redirects")
	}
	if !c.hosts.Allows(req.URL.Hostname()) {
		req.Header.Del(c.authHeader)
	}
	return nil
}

// Fetch performs one GET for spec.URL. The caller must close Document.Body.
func (c *Client) Fetch(ctx context.Context, spec docstore.FetchSpec) (*Document, error) {
	if spec.URL == "" {
		return nil, fmt.Errorf("%w: fetch spec has no url", docstore.ErrInvalidReference)
	}
	accept := spec.Accept
	if accept == "" {
		accept = "application/pdf"
	}

	resp, err := c.do(ctx, spec.URL, accept)
	if err != nil {
		return nil, err
	}

	return &Document{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

// do sends an authenticated GET and returns a 2xx response or a classified error.
func (c *Client) do(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	u, err := c.hosts.Check(rawURL)
	if err != nil {
		return nil, err
	}

	credential, err := c.creds.Credential(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: credential unavailable: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(c.authHeader, credential)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("upstream request failed",
			"host", u.Host,
			"path", u.Path,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.logger.Debug("upstream response",
		"host", u.Host,
		"path", u.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, classify(resp.StatusCode)
	}
	return resp, nil
}
