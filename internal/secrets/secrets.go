// Package secrets generates and verifies the opaque manage/probe tokens:
// high-entropy, shown once on creation, stored only as a salted hash
// produced by a modern password KDF with constant-time verification.
package secrets

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id tuning. Time cost >= 2 and memory cost >= 64 MiB per spec.
const (
	argonTime    = 2
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// ErrMismatch is returned by Verify when a token does not match its hash.
var ErrMismatch = errors.New("secrets: token does not match hash")

// Generate returns a new high-entropy opaque token, prefixed so that leaked
// tokens are easy to grep for and to tell apart by kind (e.g. "wm_" for a
// monitor manage key, "wp_" for a location probe key).
func Generate(prefix string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return prefix + hex.EncodeToString(b), nil
}

// Hash derives a salted argon2id hash of the token, encoded as a single
// self-describing string so the parameters can evolve without invalidating
// previously stored hashes.
func Hash(token string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	sum := argon2.IDKey([]byte(token), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		argonTime, argonMemory, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify checks token against an encoded hash produced by Hash, in constant
// time with respect to the comparison itself.
func Verify(token, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return errors.New("secrets: unrecognized hash format")
	}
	time64, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return fmt.Errorf("secrets: bad time cost: %w", err)
	}
	mem64, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return fmt.Errorf("secrets: bad memory cost: %w", err)
	}
	threads64, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil {
		return fmt.Errorf("secrets: bad thread count: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("secrets: bad salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("secrets: bad digest: %w", err)
	}

	got := argon2.IDKey([]byte(token), salt, uint32(time64), uint32(mem64), uint8(threads64), uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrMismatch
	}
	return nil
}
