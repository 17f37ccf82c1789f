package middleware

import (
	"context"
	"time"

	"pfw-hq/relay/pkg/telemetry/logging"
)

type contextKey string

// StartTimeKey stores the request start time.
const StartTimeKey contextKey = "start_time"

// GetRequestID returns the request ID set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	return logging.GetRequestID(ctx)
}

// GetStartTime returns the request start time set by Logging.
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}
