// Package password implements Argon2id password hashing with PHC-encoded
// output. Hashing embeds a fresh random salt per call, so two hashes of the
// same password differ; verification recovers the parameters and salt from
// the encoded string.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = 19 // argon2.Version (0x13)

// Params defines the Argon2id cost parameters used for hashing.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns parameters suitable for interactive logins.
func DefaultParams() Params {
	return Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hash hashes a password with Argon2id and returns a PHC-encoded string:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>
func Hash(password string, p Params) (string, error) {
	p = sanitize(p)

	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	b64 := base64.RawStdEncoding
	enc := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		p.MemoryKiB,
		p.Iterations,
		p.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	)
	return enc, nil
}

// Verify checks password against an encoded hash.
// Returns (true, nil) on match, (false, nil) on mismatch and
// (false, ErrInvalidHash) when the stored hash is malformed or carries
// parameters outside acceptable bounds. Callers facing untrusted clients
// must not distinguish the malformed case from a mismatch.
func Verify(encoded, password string) (bool, error) {
	params, salt, expected, err := decode(encoded)
	if err != nil {
		return false, err
	}

	// Refuse hashes whose parameters vastly exceed our own limits, so an
	// attacker-controlled hash string cannot pin a CPU during verification.
	if !withinBounds(params, DefaultParams()) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 -- length bounded by decode.
	)

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func sanitize(p Params) Params {
	def := DefaultParams()
	if p.MemoryKiB < 8*1024 {
		p.MemoryKiB = def.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = def.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = def.Parallelism
	}
	if p.SaltLength < 8 {
		p.SaltLength = def.SaltLength
	}
	if p.KeyLength < 16 {
		p.KeyLength = def.KeyLength
	}
	return p
}

func withinBounds(got, limits Params) bool {
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if got.Parallelism > limits.Parallelism*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

// decode parses a PHC Argon2id string into parameters, salt and key.
func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != "v=19" {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	p := Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by withinBounds.
		KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by withinBounds.
	}
	return p, salt, key, nil
}
