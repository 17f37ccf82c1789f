// Package issuer turns document references into download links.
//
// CreateDownloadLink is the entry point for code in this process that
// wants to hand out a URL: it validates the reference with the owning
// adapter, makes sure the local proxy is listening, issues a token and
// formats "<public base>/<token>/<filename>".
package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"pfw-hq/relay/pkg/docstore"
	"pfw-hq/relay/pkg/linkcache"
)

// ErrProxyUnavailable means the local proxy could not be started, so a
// link would not be servable.
var ErrProxyUnavailable = errors.New("download proxy unavailable")

// Starter brings the proxy up on demand. EnsureRunning must be idempotent
// and safe for concurrent use.
type Starter interface {
	EnsureRunning(ctx context.Context) error
}

// LinkRequest describes a link to create.
type LinkRequest struct {
	Source          linkcache.SourceSystem
	Ref             linkcache.DocumentRef
	DisplayFilename string
	ContentHint     linkcache.ContentHint

	// TTL overrides the link cache default when positive.
	TTL time.Duration
}

// Config configures an Issuer.
type Config struct {
	// PublicBaseURL prefixes every link, e.g. "http://localhost:8080".
	PublicBaseURL string

	// Starter is consulted before each issuance. Nil assumes the proxy
	// is already running.
	Starter Starter

	Logger *slog.Logger
}

// Issuer creates download links.
type Issuer struct {
	cache   *linkcache.Cache
	router  *docstore.Router
	starter Starter
	base    string
	logger  *slog.Logger
}

// New creates an issuer.
func New(cache *linkcache.Cache, router *docstore.Router, cfg Config) *Issuer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		cache:   cache,
		router:  router,
		starter: cfg.Starter,
		base:    strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:  logger.With("component", "issuer"),
	}
}

// CreateDownloadLink issues a token for req and returns its URL.
//
// It fails with docstore.ErrInvalidReference or docstore.ErrUnknownSource
// before anything is stored, and with ErrProxyUnavailable when the proxy
// cannot be started.
func (i *Issuer) CreateDownloadLink(ctx context.Context, req LinkRequest) (string, error) {
	tok, err := i.Issue(ctx, req)
	if err != nil {
		return "", err
	}
	return i.LinkFor(tok), nil
}

// Issue is CreateDownloadLink returning the token instead of its URL.
func (i *Issuer) Issue(ctx context.Context, req LinkRequest) (*linkcache.DownloadToken, error) {
	adapter, err := i.router.For(req.Source)
	if err != nil {
		return nil, err
	}
	if err := adapter.Validate(req.Ref); err != nil {
		return nil, err
	}

	hint, err := docstore.CheckContentHint(req.ContentHint)
	if err != nil {
		return nil, err
	}
	filename := docstore.SanitizeFilename(req.DisplayFilename, hint)
	if filename == "" {
		filename = adapter.DefaultFilename(req.Ref)
	}

	if i.starter != nil {
		if err := i.starter.EnsureRunning(ctx); err != nil {
			i.logger.Error("proxy failed to start", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrProxyUnavailable, err)
		}
	}

	tok, err := i.cache.Issue(ctx, linkcache.IssueRequest{
		Source:          adapter.Source(),
		Ref:             req.Ref,
		DisplayFilename: filename,
		ContentHint:     hint,
		TTL:             req.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue link: %w", err)
	}

	i.logger.Debug("link issued",
		"source", tok.SourceSystem,
		"document_id", req.Ref.DocumentID,
		"expires_at", tok.ExpiresAt,
	)
	return tok, nil
}

// LinkFor formats the public URL of tok.
func (i *Issuer) LinkFor(tok *linkcache.DownloadToken) string {
	return FormatLink(i.base, tok.Token, tok.DisplayFilename)
}

// FormatLink joins base, token and the escaped filename.
func FormatLink(base, token, filename string) string {
	return strings.TrimRight(base, "/") + "/" + token + "/" + url.PathEscape(filename)
}
