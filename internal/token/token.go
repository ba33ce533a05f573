// Package token issues and verifies the signed, expiring bearer credentials
// handed out at registration and login.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed is returned for values that are not a three segment token
	// or whose segments cannot be decoded.
	ErrMalformed = errors.New("malformed token")
	// ErrBadSignature is returned when the signature does not match the secret.
	ErrBadSignature = errors.New("invalid token signature")
	// ErrExpired is returned once the expiry instant has passed.
	ErrExpired = errors.New("token expired")
)

// Claims are the assertions embedded in a token. Subject, IssuedAt and
// ExpiresAt live in the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

var signingMethod = jwt.SigningMethodHS256

// Issue signs claims with secret. IssuedAt and ExpiresAt are overwritten with
// now and now+ttl; a negative ttl yields an already expired token.
func Issue(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("token secret is empty")
	}
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the structure, signature and expiry of raw, in that order,
// and returns its claims. The payload is only decoded once the signature
// matches. The returned error is always one of ErrMalformed, ErrBadSignature
// or ErrExpired.
func Verify(raw string, secret []byte) (*Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, ErrMalformed
	}
	for _, p := range parts {
		if p == "" {
			return nil, ErrMalformed
		}
	}

	if err := verifySignature(parts, secret); err != nil {
		return nil, err
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, classify(err)
	}
	if !tok.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

func verifySignature(parts []string, secret []byte) error {
	sig, err := jwt.NewParser(jwt.WithStrictDecoding()).DecodeSegment(parts[2])
	if err != nil {
		return ErrMalformed
	}
	if err := signingMethod.Verify(parts[0]+"."+parts[1], sig, secret); err != nil {
		return ErrBadSignature
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
