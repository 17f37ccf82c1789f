// Package upstream is the narrow client for the patent-data API's document
// downloads.
//
// It attaches the server-held credential, enforces a response timeout that
// is independent of the caller's, and sorts failures into the classes the
// proxy maps to HTTP statuses:
//
//	ErrNotFound     404/410 from upstream
//	ErrForbidden    401/403
//	ErrThrottled    429
//	ErrRejected     any other 4xx
//	ErrUnavailable  5xx and transport failures (retryable)
package upstream
