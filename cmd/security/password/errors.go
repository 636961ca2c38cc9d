package password

import "errors"

// ErrInvalidHash reports a malformed or unsupported encoded hash.
// Verification fails closed on it; it must never be surfaced to clients
// in a way that distinguishes it from a plain mismatch.
var ErrInvalidHash = errors.New("password: invalid argon2id hash")
