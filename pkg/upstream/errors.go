package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure classes. Match with errors.Is.
var (
	ErrNotFound    = errors.New("upstream document not found")
	ErrForbidden   = errors.New("upstream refused credentials")
	ErrThrottled   = errors.New("upstream rate limit exceeded")
	ErrRejected    = errors.New("upstream rejected request")
	ErrUnavailable = errors.New("upstream unavailable")
)

// StatusError carries the upstream status code behind a classified error.
type StatusError struct {
	StatusCode int
	kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d", e.kind, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.kind }

// classify maps a non-2xx status to a StatusError.
func classify(status int) error {
	var kind error
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		kind = ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrForbidden
	case status == http.StatusTooManyRequests:
		kind = ErrThrottled
	case status >= 500:
		kind = ErrUnavailable
	default:
		kind = ErrRejected
	}
	return &StatusError{StatusCode: status, kind: kind}
}

// Retryable reports whether err is worth one more attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
