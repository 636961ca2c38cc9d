package credential

import "errors"

var (
	// ErrNotFound means no row exists for the identity or email.
	ErrNotFound = errors.New("credential: not found")

	// ErrDuplicateEmail reports a registration conflict on the email.
	ErrDuplicateEmail = errors.New("credential: email already registered")

	// ErrTokenMismatch means a conditional token update found the stored
	// value already moved on (superseded token, or row logged out).
	ErrTokenMismatch = errors.New("credential: stored token mismatch")

	// ErrInvalidInput reports a malformed call (empty id, email, ...).
	ErrInvalidInput = errors.New("credential: invalid input")
)
