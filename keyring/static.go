package keyring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Static is an in-memory [Provider]. Keys are held in a map guarded by a
// read-write mutex; rotation installs a new current key while the old one
// keeps validating until retired.
type Static struct {
	mu      sync.RWMutex
	keys    map[string][]byte
	current string
}

// NewStatic creates a [Static] provider from the given key set. currentID
// selects the signing key and must be present in keys.
func NewStatic(keys map[string][]byte, currentID string) (*Static, error) {
	if len(keys) == 0 {
		return nil, errors.New("key set must not be empty")
	}

	cloned := make(map[string][]byte, len(keys))
	for id, secret := range keys {
		if strings.TrimSpace(id) == "" {
			return nil, errors.New("key set contains empty key id")
		}
		if len(secret) < MinSecretLength {
			return nil, fmt.Errorf("secret for key %q is shorter than %d bytes", id, MinSecretLength)
		}
		cloned[id] = append([]byte(nil), secret...)
	}

	if _, ok := cloned[currentID]; !ok {
		return nil, fmt.Errorf("current key %q is not present in key set", currentID)
	}

	return &Static{keys: cloned, current: currentID}, nil
}

// Current implements [Provider].
func (s *Static) Current(_ context.Context) (Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.keys[s.current]
	if !ok {
		return Key{}, ErrNoCurrentKey
	}

	return Key{ID: s.current, Secret: append([]byte(nil), secret...)}, nil
}

// Lookup implements [Provider].
func (s *Static) Lookup(_ context.Context, keyID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.keys[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}

	return append([]byte(nil), secret...), nil
}

// Rotate installs key as the new signing key. Previously installed keys
// remain valid for verification until [Static.Retire] removes them.
func (s *Static) Rotate(key Key) error {
	if strings.TrimSpace(key.ID) == "" {
		return errors.New("key id must not be empty")
	}
	if len(key.Secret) < MinSecretLength {
		return fmt.Errorf("secret for key %q is shorter than %d bytes", key.ID, MinSecretLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[key.ID] = append([]byte(nil), key.Secret...)
	s.current = key.ID
	return nil
}

// Retire removes a key from the verification set. Retiring the current
// signing key is rejected.
func (s *Static) Retire(keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keyID == s.current {
		return errors.New("cannot retire the current signing key")
	}
	if _, ok := s.keys[keyID]; !ok {
		return ErrKeyNotFound
	}

	delete(s.keys, keyID)
	return nil
}
