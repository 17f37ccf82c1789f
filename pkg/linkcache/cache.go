package linkcache

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTTL is how long an issued link stays valid unless configured.
const DefaultTTL = 7 * 24 * time.Hour

// maxIssueAttempts bounds token regeneration after digest collisions.
const maxIssueAttempts = 5

// Observer receives link lifecycle events, typically for metrics.
type Observer interface {
	LinkIssued(source SourceSystem)
	LinkResolved(outcome string)
	LinksSwept(n int)
}

// Resolution outcomes reported to Observer.LinkResolved.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeExpired = "expired"
)

type nopObserver struct{}

func (nopObserver) LinkIssued(SourceSystem) {}
func (nopObserver) LinkResolved(string)     {}
func (nopObserver) LinksSwept(int)          {}

// Config configures a Cache.
type Config struct {
	// TTL is the default link lifetime. Default: DefaultTTL
	TTL time.Duration

	// Sealer encrypts stored descriptors. Nil stores them in the clear.
	Sealer *Sealer

	Logger   *slog.Logger
	Observer Observer

	// Now replaces time.Now for tests.
	Now func() time.Time

	// NewToken replaces GenerateToken for tests.
	NewToken func() (string, error)
}

// Cache issues and resolves download tokens on top of a Backend.
type Cache struct {
	backend  Backend
	ttl      time.Duration
	sealer   *Sealer
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
	newToken func() (string, error)
}

// New creates a Cache. The Cache owns backend and closes it on Close.
func New(backend Backend, cfg Config) *Cache {
	c := &Cache{
		backend:  backend,
		ttl:      cfg.TTL,
		sealer:   cfg.Sealer,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		now:      cfg.Now,
		newToken: cfg.NewToken,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "linkcache")
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newToken == nil {
		c.newToken = GenerateToken
	}
	return c
}

// TTL returns the default link lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Issue stores a new token for req and returns it.
func (c *Cache) Issue(ctx context.Context, req IssueRequest) (*DownloadToken, error) {
	if req.Source == "" {
		return nil, fmt.Errorf("source system cannot be empty")
	}
	if req.ContentHint == "" {
		req.ContentHint = ContentPDF
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = c.ttl
	}

	refDigest := Digest(req.Ref.NaturalKey(req.Source))

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		token, err := c.newToken()
		if err != nil {
			return nil, err
		}

		now := c.now()
		tok := &DownloadToken{
			Token:           token,
			SourceSystem:    req.Source,
			Ref:             req.Ref,
			DisplayFilename: req.DisplayFilename,
			ContentHint:     req.ContentHint,
			CreatedAt:       now,
			ExpiresAt:       now.Add(ttl),
		}

		rec, err := c.encode(tok, refDigest)
		if err != nil {
			return nil, err
		}

		err = c.backend.Insert(ctx, rec, now)
		if errors.Is(err, ErrCollision) {
			c.logger.Warn("token collision, regenerating", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		c.observer.LinkIssued(req.Source)
		c.logger.Debug("link issued",
			"source_system", req.Source,
			"expires_at", tok.ExpiresAt,
		)
		return tok, nil
	}

	return nil, fmt.Errorf("failed to issue link after %d attempts: %w", maxIssueAttempts, ErrCollision)
}

// Resolve returns the live token, or ErrNotFound for unknown and expired
// tokens alike. An expired row is deleted on the way out.
func (c *Cache) Resolve(ctx context.Context, token string) (*DownloadToken, error) {
	if !ValidTokenSyntax(token) {
		c.observer.LinkResolved(OutcomeMiss)
		return nil, ErrNotFound
	}

	digest := Digest(token)
	rec, err := c.backend.Get(ctx, digest)
	if errors.Is(err, ErrNotFound) {
		c.observer.LinkResolved(OutcomeMiss)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	now := c.now()
	if !rec.ExpiresAt.After(now) {
		if err := c.backend.Delete(ctx, digest); err != nil {
			c.logger.Warn("failed to delete expired link", "error", err)
		}
		c.observer.LinkResolved(OutcomeExpired)
		return nil, ErrNotFound
	}

	tok, err := c.decode(rec)
	if err != nil || subtle.ConstantTimeCompare([]byte(tok.Token), []byte(token)) != 1 {
		if err != nil {
			c.logger.Warn("stored link could not be decoded", "error", err)
		}
		c.observer.LinkResolved(OutcomeMiss)
		return nil, ErrNotFound
	}

	c.observer.LinkResolved(OutcomeHit)
	return tok, nil
}

// FindByRef returns a live token already issued for the same document
// under source, or ErrNotFound.
func (c *Cache) FindByRef(ctx context.Context, source SourceSystem, ref DocumentRef) (*DownloadToken, error) {
	rec, err := c.backend.FindLive(ctx, source, Digest(ref.NaturalKey(source)), c.now())
	if err != nil {
		return nil, err
	}
	tok, err := c.decode(rec)
	if err != nil {
		c.logger.Warn("stored link could not be decoded", "error", err)
		return nil, ErrNotFound
	}
	return tok, nil
}

// Sweep deletes every expired link and returns how many were removed.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	n, err := c.backend.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, err
	}
	c.observer.LinksSwept(n)
	return n, nil
}

// Stats summarizes stored links.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	return c.backend.Stats(ctx, c.now())
}

// Ping checks the backend.
func (c *Cache) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

func (c *Cache) encode(tok *DownloadToken, refDigest string) (*Record, error) {
	plain, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal link: %w", err)
	}

	digest := Digest(tok.Token)
	payload, err := c.sealer.Seal(plain, []byte(digest))
	if err != nil {
		return nil, err
	}

	return &Record{
		Digest:    digest,
		Source:    tok.SourceSystem,
		RefDigest: refDigest,
		Payload:   payload,
		CreatedAt: tok.CreatedAt,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

func (c *Cache) decode(rec *Record) (*DownloadToken, error) {
	plain, err := c.sealer.Open(rec.Payload, []byte(rec.Digest))
	if err != nil {
		return nil, err
	}

	var tok DownloadToken
	if err := json.Unmarshal(plain, &tok); err != nil {
		return nil, fmt.Errorf("failed to unmarshal link: %w", err)
	}
	return &tok, nil
}
