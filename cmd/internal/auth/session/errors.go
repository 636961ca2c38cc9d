package session

import "errors"

var (
	// ErrInvalidCredentials is the single login failure surfaced to clients.
	// Unknown identity and wrong password are indistinguishable through it.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is the single token-rejection outcome for refresh,
	// logout and guard checks. Expired, forged, revoked and superseded all
	// collapse into it; the distinction exists only in server logs.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrStoreUnavailable wraps credential store failures (unreachable,
	// timed out). Callers may retry with backoff; it is never silently
	// swallowed into an auth decision.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrDuplicateEmail reports a registration conflict.
	ErrDuplicateEmail = errors.New("email already registered")
)
