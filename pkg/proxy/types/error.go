package types

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorResponse is the body of every non-2xx response. It never carries
// internal error text.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Client-facing messages, one per status the relay produces.
const (
	MessageInvalidRequest = "invalid request"
	MessageUnauthorized   = "authentication required"
	MessageForbidden      = "access denied"
	MessageNotFound       = "link not found or expired"
	MessageMethod         = "method not allowed"
	MessageTooLarge       = "request body too large"
	MessageRateLimited    = "download rate limit exceeded, retry later"
	MessageInternal       = "internal error"
	MessageBadGateway     = "document source unavailable"
	MessageUnavailable    = "service unavailable"
)

// NewErrorResponse builds an error body.
func NewErrorResponse(status int, message, requestID string) *ErrorResponse {
	if message == "" {
		message = http.StatusText(status)
	}
	return &ErrorResponse{Error: ErrorDetail{
		Status:    status,
		Message:   message,
		RequestID: requestID,
	}}
}

// WriteError writes an error body with status.
func WriteError(w http.ResponseWriter, status int, message, requestID string) {
	h := w.Header()
	h.Del("Content-Disposition")
	h.Del("Content-Length")
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(status, message, requestID))
}

// WriteRateLimited writes a 429 with Retry-After in whole seconds.
func WriteRateLimited(w http.ResponseWriter, retryAfterSeconds int, requestID string) {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	WriteError(w, http.StatusTooManyRequests, MessageRateLimited, requestID)
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
