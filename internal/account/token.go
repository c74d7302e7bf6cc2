// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultTokenTTL is how long an issued bearer token stays valid.
const DefaultTokenTTL = time.Hour

// Claims are the JWT claims carried by a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Identity is the verified subject of a bearer token.
type Identity struct {
	UserID ulid.ULID
	Email  string
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithTokenClock sets the time source used for issuing and verifying.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// WithTokenIssuerName sets the iss claim.
func WithTokenIssuerName(name string) TokenOption {
	return func(t *TokenIssuer) {
		t.issuer = name
	}
}

// NewTokenIssuer creates a TokenIssuer. An empty secret is a configuration
// error and the caller must not start without one.
func NewTokenIssuer(secret string, opts ...TokenOption) (*TokenIssuer, error) {
	if secret == "" {
		return nil, oops.Code("TOKEN_SECRET_MISSING").Errorf("token signing secret is required")
	}
	t := &TokenIssuer{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for the given identity.
func (t *TokenIssuer) Issue(id Identity) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		UserID: id.UserID.String(),
		Email:  id.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("user_id", id.UserID.String()).Wrap(err)
	}
	return signed, nil
}

// Verify parses and validates a token. Any failure yields an error wrapping
// ErrInvalidToken and a zero Identity.
func (t *TokenIssuer) Verify(token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Identity{}, oops.Code("TOKEN_INVALID").With("reason", err.Error()).Wrap(ErrInvalidToken)
	}
	if !parsed.Valid {
		return Identity{}, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	userID, err := ulid.Parse(claims.UserID)
	if err != nil {
		return Identity{}, oops.Code("TOKEN_INVALID").With("reason", "malformed userId claim").Wrap(ErrInvalidToken)
	}
	if claims.Email == "" {
		return Identity{}, oops.Code("TOKEN_INVALID").With("reason", "missing email claim").Wrap(ErrInvalidToken)
	}
	return Identity{UserID: userID, Email: claims.Email}, nil
}
