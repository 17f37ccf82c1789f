package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys are attribute keys whose values are always fingerprinted.
var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"x-api-key":     true,
	"credential":    true,
	"authorization": true,
	"secret":        true,
	"token":         true,
	"password":      true,
}

var bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)

// RedactAttr is a slog ReplaceAttr hook.
func RedactAttr(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		if s := a.Value.String(); s != "" {
			return slog.String(a.Key, Fingerprint(s))
		}
		return a
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); bearerPattern.MatchString(s) {
			return slog.String(a.Key, bearerPattern.ReplaceAllString(s, "Bearer [REDACTED]"))
		}
	}
	return a
}

// Fingerprint returns "sha256:" plus the first 8 hex digits of s's digest.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(sum[:4])
}

// RedactPath masks the first path segment of a download URL path, which is
// a bearer token: "/abc123/ABST.pdf" becomes "/abc1…/ABST.pdf".
func RedactPath(p string) string {
	rest := strings.TrimPrefix(p, "/")
	seg, tail, found := strings.Cut(rest, "/")
	if !found || len(seg) <= 4 {
		return p
	}
	return "/" + seg[:4] + "…/" + tail
}
