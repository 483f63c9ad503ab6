package keyring

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned when a presented key ID has no known secret.
// Callers must treat this as an invalid-token condition, not a server error.
var ErrKeyNotFound = errors.New("signing key not found")

// ErrNoCurrentKey is returned when the provider has no key designated to
// sign new tokens.
var ErrNoCurrentKey = errors.New("no current signing key")

// ErrUnavailable is returned when the backing key source cannot be reached.
var ErrUnavailable = errors.New("key provider unavailable")

// MinSecretLength is the smallest secret the package accepts. HS256 secrets
// shorter than the hash output weaken the MAC.
const MinSecretLength = 32

// Key is a signing secret together with its wire identifier.
type Key struct {
	ID     string
	Secret []byte
}

// Provider supplies the signing secret for newly minted tokens and resolves
// secrets for key IDs found in presented tokens.
//
// Implementations must be safe for unbounded concurrent use.
type Provider interface {
	// Current returns the key that signs new tokens.
	Current(ctx context.Context) (Key, error)

	// Lookup returns the secret for keyID, or [ErrKeyNotFound] if the ID
	// is unknown.
	Lookup(ctx context.Context, keyID string) ([]byte, error)
}
