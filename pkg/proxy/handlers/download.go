package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"pfw-hq/relay/pkg/docstore"
	"pfw-hq/relay/pkg/linkcache"
	"pfw-hq/relay/pkg/proxy/middleware"
	"pfw-hq/relay/pkg/proxy/types"
	"pfw-hq/relay/pkg/ratelimit"
	"pfw-hq/relay/pkg/telemetry/logging"
	"pfw-hq/relay/pkg/telemetry/metrics"
	"pfw-hq/relay/pkg/telemetry/tracing"
	"pfw-hq/relay/pkg/upstream"
)

// maxAttempts is the first try plus one retry.
const maxAttempts = 2

// Fetcher is the upstream collaborator. *upstream.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, spec docstore.FetchSpec) (*upstream.Document, error)
	Locate(ctx context.Context, req docstore.LocateRequest) (string, error)
}

// DownloadConfig configures a DownloadHandler.
type DownloadConfig struct {
	// StreamTimeout bounds the upstream work of one request, from the
	// first rate-limit wait to the last byte. Default: 5 minutes
	StreamTimeout time.Duration

	// RetryBackoff is the pause before retrying an unavailable upstream.
	// Default: 500ms
	RetryBackoff time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
}

// DownloadHandler serves GET /{token}/{filename}.
type DownloadHandler struct {
	cache   *linkcache.Cache
	router  *docstore.Router
	limiter *ratelimit.RollingWindow
	fetcher Fetcher

	streamTimeout time.Duration
	retryBackoff  time.Duration
	logger        *slog.Logger
	metrics       *metrics.Collector
	tracer        *tracing.Tracer
}

// NewDownloadHandler creates the download dispatcher.
func NewDownloadHandler(cache *linkcache.Cache, router *docstore.Router, limiter *ratelimit.RollingWindow, fetcher Fetcher, cfg DownloadConfig) *DownloadHandler {
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 5 * time.Minute
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &DownloadHandler{
		cache:         cache,
		router:        router,
		limiter:       limiter,
		fetcher:       fetcher,
		streamTimeout: cfg.StreamTimeout,
		retryBackoff:  cfg.RetryBackoff,
		logger:        cfg.Logger.With("component", "dispatcher"),
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
	}
}

// ServeHTTP implements http.Handler. HEAD is answered from the link alone
// and never reaches upstream.
func (h *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}

	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), tracing.SpanDownload, trace.WithSpanKind(trace.SpanKindServer))
	logger := logging.FromContext(ctx, h.logger)

	source := ""
	status, written, err := h.serve(ctx, w, r, logger, &source)

	span.SetAttributes(tracing.AttrStatusCode.Int(status))
	if err != nil && status >= 500 {
		tracing.End(span, err)
	} else {
		tracing.End(span, nil)
	}
	h.metrics.RecordDownload(source, status, time.Since(start), written)
}

// serve runs one request and reports its status and body size. It writes
// the error response itself.
func (h *DownloadHandler) serve(ctx context.Context, w http.ResponseWriter, r *http.Request, logger *slog.Logger, source *string) (int, int64, error) {
	requestID := middleware.GetRequestID(ctx)

	token, filename := r.PathValue("token"), r.PathValue("filename")
	if !linkcache.ValidTokenSyntax(token) || filename == "" {
		return h.fail(w, logger, requestID, ErrInvalidPath), 0, ErrInvalidPath
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(tracing.AttrTokenFP.String(logging.Fingerprint(token)))

	tok, err := h.resolve(ctx, token)
	if err != nil {
		return h.fail(w, logger, requestID, err), 0, err
	}
	*source = string(tok.SourceSystem)
	span.SetAttributes(
		tracing.AttrSource.String(*source),
		tracing.AttrDocumentID.String(tok.Ref.DocumentID),
	)

	spec, err := h.router.PrepareFetch(tok.SourceSystem, tok.Ref, tok.ContentHint)
	if err != nil {
		logger.Warn("stored reference cannot be fetched",
			"source", tok.SourceSystem,
			"document_id", tok.Ref.DocumentID,
			"error", err,
		)
		return h.fail(w, logger, requestID, err), 0, err
	}

	if r.Method == http.MethodHead {
		setDownloadHeaders(w, tok, "", -1)
		w.WriteHeader(http.StatusOK)
		return http.StatusOK, 0, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, h.streamTimeout)
	defer cancel()

	doc, err := h.fetch(fetchCtx, logger, tok, &spec)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("client went away before upstream responded", "source", tok.SourceSystem)
			return 499, 0, ctx.Err()
		}
		var exceeded *ratelimit.ExceededError
		if !errors.As(err, &exceeded) {
			h.metrics.RecordUpstreamError(upstreamClass(err))
		}
		return h.fail(w, logger, requestID, err), 0, err
	}
	defer doc.Body.Close()

	setDownloadHeaders(w, tok, doc.ContentType, doc.ContentLength)
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, doc.Body)
	if err != nil {
		logger.Warn("download stream interrupted",
			"source", tok.SourceSystem,
			"bytes", n,
			"error", err,
		)
		return http.StatusOK, n, err
	}

	logger.Info("document served",
		"source", tok.SourceSystem,
		"document_id", tok.Ref.DocumentID,
		"bytes", n,
	)
	return http.StatusOK, n, nil
}

func (h *DownloadHandler) resolve(ctx context.Context, token string) (*linkcache.DownloadToken, error) {
	ctx, span := h.tracer.Start(ctx, tracing.SpanResolve)
	tok, err := h.cache.Resolve(ctx, token)
	if errors.Is(err, linkcache.ErrNotFound) {
		tracing.End(span, nil)
	} else {
		tracing.End(span, err)
	}
	return tok, err
}

// fetch performs the upstream call with one retry for unavailable
// upstreams. A located download URL is kept across attempts.
func (h *DownloadHandler) fetch(ctx context.Context, logger *slog.Logger, tok *linkcache.DownloadToken, spec *docstore.FetchSpec) (*upstream.Document, error) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			h.metrics.RecordUpstreamRetry(string(tok.SourceSystem))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(h.retryBackoff):
			}
		}

		var doc *upstream.Document
		doc, err = h.attempt(ctx, spec, attempt)
		if err == nil {
			return doc, nil
		}
		if !upstream.Retryable(err) {
			return nil, err
		}
		logger.Warn("upstream unavailable",
			"source", tok.SourceSystem,
			"attempt", attempt,
			"error", err,
		)
	}
	return nil, err
}

// attempt locates the document when needed, then fetches it. Only the
// document fetch counts against the download window.
func (h *DownloadHandler) attempt(ctx context.Context, spec *docstore.FetchSpec, attempt int) (*upstream.Document, error) {
	if spec.Locate != nil {
		lctx, span := h.tracer.Start(ctx, tracing.SpanUpstreamLocate,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(tracing.AttrAttempt.Int(attempt)))
		u, err := h.fetcher.Locate(lctx, *spec.Locate)
		tracing.End(span, err)
		if err != nil {
			return nil, err
		}
		spec.URL, spec.Locate = u, nil
	}

	if err := h.admit(ctx); err != nil {
		return nil, err
	}
	fctx, span := h.tracer.Start(ctx, tracing.SpanUpstreamFetch,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.AttrAttempt.Int(attempt)))
	doc, err := h.fetcher.Fetch(fctx, *spec)
	tracing.End(span, err)
	return doc, err
}

// admit waits for the rate limiter and records the outcome.
func (h *DownloadHandler) admit(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, tracing.SpanRateLimitWait)
	start := time.Now()
	err := h.limiter.Wait(ctx)
	waited := time.Since(start)
	span.SetAttributes(tracing.AttrWaitMS.Int64(waited.Milliseconds()))

	var exceeded *ratelimit.ExceededError
	switch {
	case err == nil:
		h.metrics.RecordRateLimitWait(waited)
	case errors.As(err, &exceeded):
		h.metrics.RecordRateLimitRejection()
	}
	tracing.End(span, err)
	return err
}

// fail writes the error response for err and returns its status.
func (h *DownloadHandler) fail(w http.ResponseWriter, logger *slog.Logger, requestID string, err error) int {
	status := statusFor(err)
	switch {
	case status >= 500:
		logger.Error("download failed", "status", status, "error", err)
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		logger.Debug("download rejected", "status", status, "error", err)
	default:
		logger.Warn("download rejected", "status", status, "error", err)
	}

	if status == http.StatusTooManyRequests {
		types.WriteRateLimited(w, h.retryAfter(err), requestID)
		return status
	}
	types.WriteError(w, status, messageFor(status), requestID)
	return status
}

// retryAfter is the limiter's own hint, or one full window when upstream
// throttled us.
func (h *DownloadHandler) retryAfter(err error) int {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		return exceeded.RetryAfterSeconds()
	}
	return int(math.Ceil(h.limiter.Window().Seconds()))
}

func setDownloadHeaders(w http.ResponseWriter, tok *linkcache.DownloadToken, upstreamType string, length int64) {
	hd := w.Header()
	hd.Set("Content-Type", contentType(tok.ContentHint, upstreamType))
	hd.Set("Content-Disposition", contentDisposition(tok.DisplayFilename))
	hd.Set("X-Document-Source", string(tok.SourceSystem))
	hd.Set("Cache-Control", "no-store")
	if length >= 0 {
		hd.Set("Content-Length", strconv.FormatInt(length, 10))
	}
}

// contentType prefers the upstream type when it agrees with the hint,
// keeping parameters such as charset.
func contentType(hint linkcache.ContentHint, upstreamType string) string {
	if hint == "" {
		hint = linkcache.ContentPDF
	}
	if upstreamType == "" {
		return string(hint)
	}
	got, _, err := mime.ParseMediaType(upstreamType)
	if err != nil {
		return string(hint)
	}
	want, _, err := mime.ParseMediaType(string(hint))
	if err != nil {
		return string(hint)
	}
	if got == want || (strings.HasSuffix(got, "xml") && strings.HasSuffix(want, "xml")) {
		return upstreamType
	}
	return string(hint)
}

var dispositionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "")

func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"`, dispositionEscaper.Replace(filename))
}

// InvalidPathHandler answers every path that is not a known route.
func InvalidPathHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		types.WriteError(w, http.StatusBadRequest, types.MessageInvalidRequest, middleware.GetRequestID(r.Context()))
	})
}
