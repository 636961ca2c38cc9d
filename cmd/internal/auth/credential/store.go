// Package credential persists the per-user authentication row: password
// hash, the currently valid access/refresh token pair, and the logout flag.
//
// The store is the server-side source of truth that makes revocation work
// for self-contained signed tokens: a token is honored only while it
// textually matches the value stored here and the row is not logged out.
package credential

import (
	"context"
	"strings"
	"time"
)

// Status is informational presence state. It carries no security meaning.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Record is one user credential row.
//
// AccessToken and RefreshToken hold the one currently valid pair for this
// identity, or nil when none has been issued. IsLoggedOut invalidates both
// regardless of their cryptographic validity.
type Record struct {
	ID           string
	Email        string
	EmailNorm    string
	PasswordHash string

	AccessToken  *string
	RefreshToken *string
	IsLoggedOut  bool
	Status       Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput describes a registration request.
type CreateInput struct {
	Email        string
	PasswordHash string
	Now          time.Time
}

// Store is the credential persistence boundary.
//
// Implementations must make SetTokens, RotateTokens and Revoke single-row
// atomic updates: concurrent callers never observe a pair that is half
// written, and RotateTokens admits exactly one winner per stored token.
type Store interface {
	Create(ctx context.Context, in CreateInput) (Record, error)
	FindByEmail(ctx context.Context, email string) (Record, error)
	GetByID(ctx context.Context, id string) (Record, error)

	// SetTokens overwrites the stored pair unconditionally, clears the
	// logout flag and marks the user online. Overwriting is what invalidates
	// any previously issued pair.
	SetTokens(ctx context.Context, id, access, refresh string, now time.Time) error

	// RotateTokens replaces the stored pair only if oldRefresh still
	// textually matches the stored refresh token and the row is not logged
	// out. Returns ErrTokenMismatch when the condition fails, which is how a
	// replayed, already-rotated refresh token loses the race.
	RotateTokens(ctx context.Context, id, oldRefresh, newAccess, newRefresh string, now time.Time) error

	// Revoke sets the logout flag and clears both tokens. Idempotent.
	Revoke(ctx context.Context, id string, now time.Time) error
}

// NormalizeEmail canonicalizes an email for uniqueness and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
