package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "blog-api"

// TokenClaims is the JWT payload: the identity claim plus the registered
// issued-at/expiry timestamps covered by the signature.
type TokenClaims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, expiring bearer tokens. It holds
// the process-wide signing secret and token lifetime, both immutable after
// construction, and consults no other state: verification is a pure function
// of the token and the secret.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenService builds a service signing with the given secret and issuing
// tokens valid for lifetime.
func NewTokenService(secret []byte, lifetime time.Duration) *TokenService {
	return &TokenService{secret: secret, lifetime: lifetime, now: time.Now}
}

// Issue signs a token embedding claim, valid from now until now+lifetime.
func (s *TokenService) Issue(claim Claim) (string, error) {
	now := s.now()
	tc := TokenClaims{
		UserID: claim.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   claim.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and checks raw, returning the embedded claim. Malformed,
// tampered, or wrongly signed tokens fail with ErrTokenInvalid; a token past
// its expiry fails with ErrTokenExpired so callers can tell "log in again"
// apart from "forged".
func (s *TokenService) Verify(raw string) (Claim, error) {
	parsed, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claim{}, ErrTokenExpired
		}
		return Claim{}, ErrTokenInvalid
	}
	tc, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return Claim{}, ErrTokenInvalid
	}
	return Claim{ID: tc.UserID, Username: tc.Subject}, nil
}
