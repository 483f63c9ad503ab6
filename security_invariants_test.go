package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tripatlas/authcore/keyring"
)

// Cross-cutting guarantees that must hold regardless of configuration.

func TestInvariantAccessTokenNeverRotates(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-1", RoleStandard)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// No sequence of operations turns an access token into a rotatable
	// credential, and its rejection must not burn the real refresh token.
	for i := 0; i < 3; i++ {
		if _, err := m.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("attempt %d: expected ErrTokenMalformed, got %v", i, err)
		}
	}
	if _, err := m.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("refresh token should be unaffected: %v", err)
	}
}

func TestInvariantRefreshTokenNeverAuthorizes(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-1", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Even an admin's refresh token carries no request authority.
	if _, err := m.Authorize(ctx, pair.RefreshToken, RequireRole(RoleAdmin)); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestInvariantIssuedFamiliesAreIndependent(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	first, err := m.Issue(ctx, "user-1", RoleStandard)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	second, err := m.Issue(ctx, "user-1", RoleStandard)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Killing one session through reuse leaves the subject's others alive.
	if _, err := m.Refresh(ctx, first.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := m.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected, got %v", err)
	}
	if _, err := m.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("independent session should survive: %v", err)
	}
}

func TestInvariantRoleSurvivesRotationUnchanged(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "admin-1", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		next, err := m.Refresh(ctx, pair.RefreshToken)
		if err != nil {
			t.Fatalf("rotation %d failed: %v", i, err)
		}
		principal, err := m.Authorize(ctx, next.AccessToken, RequireRole(RoleAdmin))
		if err != nil {
			t.Fatalf("rotation %d: authorize failed: %v", i, err)
		}
		if principal.Role != RoleAdmin {
			t.Fatalf("rotation %d: role drifted to %q", i, principal.Role)
		}
		pair = next
	}
}

func TestInvariantSigningKeyRotation(t *testing.T) {
	keys, err := keyring.NewStatic(map[string][]byte{"k1": testSigningSecret}, "k1")
	if err != nil {
		t.Fatalf("NewStatic failed: %v", err)
	}

	_, client := newTestRedis(t)
	clock := newFakeClock()
	m, err := New().
		WithRedis(client).
		WithKeyProvider(keys).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(m.Close)
	ctx := context.Background()

	before, err := m.Issue(ctx, "user-1", RoleStandard)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Rotate the signing key. Tokens minted under the old key stay valid
	// until the key is retired.
	if err := keys.Rotate(keyring.Key{ID: "k2", Secret: []byte("ffffffffffffffffffffffffffffffff")}); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	after, err := m.Issue(ctx, "user-1", RoleStandard)
	if err != nil {
		t.Fatalf("Issue after key rotation failed: %v", err)
	}

	if _, err := m.Authorize(ctx, before.AccessToken, Policy{}); err != nil {
		t.Fatalf("old-key token should verify while the key is published: %v", err)
	}
	if _, err := m.Authorize(ctx, after.AccessToken, Policy{}); err != nil {
		t.Fatalf("new-key token should verify: %v", err)
	}

	if err := keys.Retire("k1"); err != nil {
		t.Fatalf("Retire failed: %v", err)
	}

	if _, err := m.Authorize(ctx, before.AccessToken, Policy{}); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("retired-key token: expected ErrSignatureInvalid, got %v", err)
	}
	if _, err := m.Authorize(ctx, after.AccessToken, Policy{}); err != nil {
		t.Fatalf("current-key token should be unaffected: %v", err)
	}
}

func TestInvariantZeroLeewayIsStrict(t *testing.T) {
	m, _, clock := newTestManager(t, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.Token.Leeway = 0
		b.WithConfig(cfg)
	})
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-1", RoleStandard)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clock.Advance(DefaultConfig().Token.AccessTTL + time.Second)

	if _, err := m.Authorize(ctx, pair.AccessToken, Policy{}); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired with zero leeway, got %v", err)
	}
}

func TestInvariantRevocationOutlivesTokenLifetime(t *testing.T) {
	m, mr, _ := newTestManager(t, nil)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-1", RoleStandard)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := m.Revoke(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	// Family revocation records are written with the full refresh horizon,
	// not the token's remaining life, so a revoked session can never come
	// back inside the refresh window.
	mr.FastForward(24 * time.Hour)

	if _, err := m.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked a day later, got %v", err)
	}
}
