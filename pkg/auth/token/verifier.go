// Package token verifies the bearer session tokens issued by the identity
// provider.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/guidepost-hq/guidepost/pkg/auth/jwks"
)

// Common errors
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrJWKSUnavailable = jwks.ErrUnavailable
	ErrKeyNotFound     = jwks.ErrKeyNotFound
)

// signingMethods restricts tokens to RS256. The identity provider signs
// session tokens with RSA keys only; accepting anything else would widen
// the attack surface for algorithm-confusion tokens.
var signingMethods = []string{"RS256"}

// Verifier verifies bearer session tokens: signature against the issuer's
// JWKS, expiry, issued-at and issuer. The audience claim is deliberately
// not validated because the identity provider does not always set one.
type Verifier struct {
	cache          *jwks.Cache
	expectedIssuer string
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithExpectedIssuer pins verification to a single issuer. Tokens whose
// issuer claim differs are rejected before any key lookup. Without the
// pin, the token's own issuer is used to locate the JWKS.
func WithExpectedIssuer(issuer string) Option {
	return func(v *Verifier) { v.expectedIssuer = strings.TrimSuffix(issuer, "/") }
}

// NewVerifier creates a Verifier resolving signing keys through the given
// JWKS cache.
func NewVerifier(cache *jwks.Cache, opts ...Option) *Verifier {
	v := &Verifier{cache: cache}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates a raw bearer token and returns its claims.
//
// The token is first decoded without signature verification, solely to
// read the key ID and issuer needed to locate the signing key. The key is
// then resolved through the JWKS cache, including one forced refresh when
// the key ID is unknown, and the token is re-decoded with full signature
// and claim validation. Nothing from the untrusted decode is returned to
// the caller.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	kid, iss, err := decodeUntrusted(tokenString)
	if err != nil {
		return nil, err
	}

	if v.expectedIssuer != "" && strings.TrimSuffix(iss, "/") != v.expectedIssuer {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIssuer, iss)
	}

	// Cache errors are returned as-is so callers can distinguish an
	// unreachable JWKS endpoint from a token signed with an unknown key.
	key, err := v.cache.SigningKey(ctx, iss, kid)
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(tokenString,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods(signingMethods),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(iss),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// decodeUntrusted extracts the key ID and issuer from a token without
// verifying its signature. The values are only used to route the key
// lookup; they are re-validated during the trusted decode.
func decodeUntrusted(tokenString string) (string, string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return "", "", fmt.Errorf("%w: missing kid header", ErrInvalidToken)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidToken
	}
	iss, err := claims.GetIssuer()
	if err != nil || iss == "" {
		return "", "", fmt.Errorf("%w: missing issuer claim", ErrInvalidToken)
	}

	return kid, iss, nil
}
