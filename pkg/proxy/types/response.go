package types

import (
	"time"

	"pfw-hq/relay/pkg/linkcache"
)

// RegistrationResponse is returned by a successful registration.
type RegistrationResponse struct {
	Success   bool      `json:"success"`
	TokenURL  string    `json:"token_url"`
	Reused    bool      `json:"reused"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CacheStatsResponse is returned by GET /admin/cache/stats.
type CacheStatsResponse struct {
	linkcache.Stats
	TTLSeconds int64 `json:"ttl_seconds"`
}

// SweepResponse is returned by POST /admin/cache/sweep.
type SweepResponse struct {
	Removed int `json:"removed"`
}

// RateLimitResponse is returned by GET /admin/rate-limit.
type RateLimitResponse struct {
	Limit          int       `json:"limit"`
	Remaining      int       `json:"remaining"`
	WindowSeconds  float64   `json:"window_seconds"`
	MaxHoldSeconds float64   `json:"max_hold_seconds"`
	ResetAt        time.Time `json:"reset_at"`
}
