package handlers

import (
	"context"
	"errors"
	"net/http"

	"pfw-hq/relay/pkg/docstore"
	"pfw-hq/relay/pkg/linkcache"
	"pfw-hq/relay/pkg/proxy/types"
	"pfw-hq/relay/pkg/ratelimit"
	"pfw-hq/relay/pkg/upstream"
)

// ErrInvalidPath is a request path that cannot name a download.
var ErrInvalidPath = errors.New("malformed download path")

// statusFor maps an error from any stage of a request to its HTTP status.
func statusFor(err error) int {
	var exceeded *ratelimit.ExceededError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, linkcache.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, docstore.ErrInvalidReference), errors.Is(err, docstore.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, upstream.ErrNotFound), errors.Is(err, upstream.ErrRejected):
		return http.StatusNotFound
	case errors.Is(err, upstream.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &exceeded), errors.Is(err, upstream.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, upstream.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing message for status.
func messageFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return types.MessageInvalidRequest
	case http.StatusUnauthorized:
		return types.MessageUnauthorized
	case http.StatusForbidden:
		return types.MessageForbidden
	case http.StatusNotFound:
		return types.MessageNotFound
	case http.StatusMethodNotAllowed:
		return types.MessageMethod
	case http.StatusRequestEntityTooLarge:
		return types.MessageTooLarge
	case http.StatusTooManyRequests:
		return types.MessageRateLimited
	case http.StatusBadGateway:
		return types.MessageBadGateway
	case http.StatusServiceUnavailable:
		return types.MessageUnavailable
	default:
		return types.MessageInternal
	}
}

// upstreamClass labels an upstream failure for metrics.
func upstreamClass(err error) string {
	switch {
	case errors.Is(err, upstream.ErrNotFound):
		return "not_found"
	case errors.Is(err, upstream.ErrForbidden):
		return "forbidden"
	case errors.Is(err, upstream.ErrThrottled):
		return "throttled"
	case errors.Is(err, upstream.ErrRejected):
		return "rejected"
	case errors.Is(err, upstream.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}
