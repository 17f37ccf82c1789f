package linkcache

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
)

// tokenBytes gives 128 bits of entropy per token.
const tokenBytes = 16

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// GenerateToken returns a fresh URL-safe token from crypto/rand.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidTokenSyntax reports whether s could be a token at all.
// Well-formed strings may still be unknown.
func ValidTokenSyntax(s string) bool {
	return tokenPattern.MatchString(s)
}

// Digest returns the hex SHA-256 of s.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
