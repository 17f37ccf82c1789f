// Package siblingauth issues and checks the short-lived service tokens that
// sibling servers present when registering documents with the hub.
//
// Tokens are HS256 JWTs signed with a shared secret. The issuer claim names
// the sibling's source system and the doc claim binds the token to one
// document, so a captured token cannot register anything else.
package siblingauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	// DefaultAudience is the hub's audience claim.
	DefaultAudience = "pfw-relay"

	// DefaultTTL is how long a service token is valid.
	DefaultTTL = 5 * time.Minute

	// MinSecretLength is the shortest accepted shared secret.
	MinSecretLength = 32
)

var (
	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = errors.New("service token expired")

	// ErrInvalid is returned for any other verification failure.
	ErrInvalid = errors.New("invalid service token")
)

// SecretSource supplies the shared secret at call time.
type SecretSource interface {
	Credential(ctx context.Context) (string, error)
}

// DocClaims names the document a token may register.
type DocClaims struct {
	Key        string `json:"key"`
	DocumentID string `json:"document_id"`
}

// Claims are the service token claims.
type Claims struct {
	jwt.RegisteredClaims
	Doc DocClaims `json:"doc"`
}

// Signer mints service tokens.
type Signer struct {
	secret   SecretSource
	ttl      time.Duration
	audience string
}

// NewSigner creates a Signer. Zero values pick the defaults.
func NewSigner(secret SecretSource, ttl time.Duration, audience string) *Signer {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if audience == "" {
		audience = DefaultAudience
	}
	return &Signer{secret: secret, ttl: ttl, audience: audience}
}

// Mint returns a token for source to register doc.
func (s *Signer) Mint(ctx context.Context, source string, doc DocClaims) (string, error) {
	key, err := loadSecret(ctx, s.secret)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    source,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		Doc: doc,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return signed, nil
}

// Verifier checks service tokens.
type Verifier struct {
	secret   SecretSource
	audience string
}

// NewVerifier creates a Verifier.
func NewVerifier(secret SecretSource, audience string) *Verifier {
	if audience == "" {
		audience = DefaultAudience
	}
	return &Verifier{secret: secret, audience: audience}
}

// Verify parses token and checks signature, expiry, audience and that the
// issuer is expectedSource.
func (v *Verifier) Verify(ctx context.Context, token, expectedSource string) (*Claims, error) {
	key, err := loadSecret(ctx, v.secret)
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalid)
	}
	if !claims.VerifyAudience(v.audience, true) {
		return nil, fmt.Errorf("%w: wrong audience", ErrInvalid)
	}
	if claims.Issuer != expectedSource {
		return nil, fmt.Errorf("%w: issuer does not match source", ErrInvalid)
	}
	return claims, nil
}

func loadSecret(ctx context.Context, src SecretSource) ([]byte, error) {
	secret, err := src.Credential(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load service token secret: %w", err)
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("service token secret must be at least %d bytes", MinSecretLength)
	}
	return []byte(secret), nil
}
