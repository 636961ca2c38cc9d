// Package token encodes and decodes the signed, expiring credentials issued
// to chat clients. Both access and refresh tokens are HS256 JWTs carrying the
// user identity, an issuance timestamp and a kind discriminator.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Kind discriminates the two credential kinds sharing one codec.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the validated content of a decoded token.
type Claims struct {
	UserID    string
	Email     string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type wireClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Kind  string `json:"kind"`
}

// Codec signs and verifies tokens under a single shared secret from the
// configuration snapshot. It is immutable and safe for concurrent use.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec builds a Codec. The secret must be non-empty and both TTLs
// positive; the configuration validator guarantees that before startup.
func NewCodec(secret, issuer string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token: empty signing secret")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token: non-positive ttl")
	}
	return &Codec{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// TTL returns the configured lifetime for a token kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Encode signs a token of the given kind for userID, expiring after the
// kind's configured TTL relative to now.
func (c *Codec) Encode(userID, email string, kind Kind, now time.Time) (string, time.Time, error) {
	exp := now.Add(c.TTL(kind))

	claims := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			// Claim timestamps have second resolution; a unique jti keeps two
			// issuances within the same second from colliding, which rotation
			// depends on to move the stored value.
			ID: ulid.Make().String(),
		},
		Email: email,
		Kind:  string(kind),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Decode verifies signature, shape and expiry of raw at the given instant.
//
// Every failure mode maps to ErrInvalidToken; an otherwise valid token past
// its expiry additionally matches ErrTokenExpired so the lifecycle manager
// can make refresh-flow decisions. Callers at the HTTP boundary must treat
// both identically.
func (c *Codec) Decode(raw string, now time.Time) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > 4096 {
		return Claims{}, ErrInvalidToken
	}

	var parsed wireClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}

	kind := Kind(parsed.Kind)
	if kind != KindAccess && kind != KindRefresh {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		UserID:    parsed.Subject,
		Email:     parsed.Email,
		Kind:      kind,
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	if parsed.IssuedAt != nil {
		out.IssuedAt = parsed.IssuedAt.Time
	}
	return out, nil
}
