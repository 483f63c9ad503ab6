package keyring

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

var (
	secretA = []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	secretB = []byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestStaticCurrentAndLookup(t *testing.T) {
	s, err := NewStatic(map[string][]byte{"k1": secretA, "k2": secretB}, "k2")
	if err != nil {
		t.Fatalf("NewStatic failed: %v", err)
	}

	ctx := context.Background()

	key, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if key.ID != "k2" || !bytes.Equal(key.Secret, secretB) {
		t.Fatalf("unexpected current key %q", key.ID)
	}

	secret, err := s.Lookup(ctx, "k1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !bytes.Equal(secret, secretA) {
		t.Fatal("lookup returned wrong secret")
	}

	if _, err := s.Lookup(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestStaticRejectsShortSecret(t *testing.T) {
	if _, err := NewStatic(map[string][]byte{"k1": []byte("short")}, "k1"); err == nil {
		t.Fatal("expected short secret rejected")
	}
}

func TestStaticRejectsUnknownCurrent(t *testing.T) {
	if _, err := NewStatic(map[string][]byte{"k1": secretA}, "k2"); err == nil {
		t.Fatal("expected unknown current key rejected")
	}
}

func TestStaticRotate(t *testing.T) {
	s, err := NewStatic(map[string][]byte{"k1": secretA}, "k1")
	if err != nil {
		t.Fatalf("NewStatic failed: %v", err)
	}

	ctx := context.Background()

	if err := s.Rotate(Key{ID: "k2", Secret: secretB}); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	key, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if key.ID != "k2" {
		t.Fatalf("expected current key k2 after rotate, got %q", key.ID)
	}

	// Retired keys still verify until removed.
	if _, err := s.Lookup(ctx, "k1"); err != nil {
		t.Fatalf("expected old key still resolvable, got %v", err)
	}

	if err := s.Retire("k1"); err != nil {
		t.Fatalf("Retire failed: %v", err)
	}
	if _, err := s.Lookup(ctx, "k1"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after retire, got %v", err)
	}
}

func TestStaticRetireCurrentRejected(t *testing.T) {
	s, err := NewStatic(map[string][]byte{"k1": secretA}, "k1")
	if err != nil {
		t.Fatalf("NewStatic failed: %v", err)
	}

	if err := s.Retire("k1"); err == nil {
		t.Fatal("expected retiring the current key rejected")
	}
}

func TestStaticClonesSecrets(t *testing.T) {
	secret := append([]byte(nil), secretA...)
	s, err := NewStatic(map[string][]byte{"k1": secret}, "k1")
	if err != nil {
		t.Fatalf("NewStatic failed: %v", err)
	}

	secret[0] = 'x'

	got, err := s.Lookup(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !bytes.Equal(got, secretA) {
		t.Fatal("expected stored secret isolated from caller mutation")
	}
}
