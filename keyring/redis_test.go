package keyring

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisProviderUnderTest(t *testing.T) (*miniredis.Miniredis, *RedisProvider) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	p := NewRedisProvider(client, RedisOptions{CacheTTL: 50 * time.Millisecond})
	t.Cleanup(p.Close)

	return mr, p
}

func TestRedisProviderPublishAndCurrent(t *testing.T) {
	_, p := newRedisProviderUnderTest(t)
	ctx := context.Background()

	if _, err := p.Current(ctx); !errors.Is(err, ErrNoCurrentKey) {
		t.Fatalf("expected ErrNoCurrentKey on empty keyring, got %v", err)
	}

	if err := p.Publish(ctx, Key{ID: "k1", Secret: secretA}, true); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	key, err := p.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if key.ID != "k1" || !bytes.Equal(key.Secret, secretA) {
		t.Fatalf("unexpected current key %q", key.ID)
	}

	secret, err := p.Lookup(ctx, "k1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !bytes.Equal(secret, secretA) {
		t.Fatal("lookup returned wrong secret")
	}
}

func TestRedisProviderPublishWithoutPromotion(t *testing.T) {
	_, p := newRedisProviderUnderTest(t)
	ctx := context.Background()

	if err := p.Publish(ctx, Key{ID: "k1", Secret: secretA}, true); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := p.Publish(ctx, Key{ID: "k2", Secret: secretB}, false); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	key, err := p.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if key.ID != "k1" {
		t.Fatalf("expected k1 to stay current, got %q", key.ID)
	}

	// The unpromoted key still verifies.
	if _, err := p.Lookup(ctx, "k2"); err != nil {
		t.Fatalf("Lookup k2 failed: %v", err)
	}
}

func TestRedisProviderLookupMiss(t *testing.T) {
	_, p := newRedisProviderUnderTest(t)

	if _, err := p.Lookup(context.Background(), "ghost"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestRedisProviderServesFromCacheDuringOutage(t *testing.T) {
	mr, p := newRedisProviderUnderTest(t)
	ctx := context.Background()

	if err := p.Publish(ctx, Key{ID: "k1", Secret: secretA}, true); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	// Warm the cache.
	if _, err := p.Lookup(ctx, "k1"); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	mr.Close()

	secret, err := p.Lookup(ctx, "k1")
	if err != nil {
		t.Fatalf("expected cached lookup to survive outage, got %v", err)
	}
	if !bytes.Equal(secret, secretA) {
		t.Fatal("cached lookup returned wrong secret")
	}
}

func TestRedisProviderUnavailable(t *testing.T) {
	mr, p := newRedisProviderUnderTest(t)
	mr.Close()

	if _, err := p.Lookup(context.Background(), "k1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := p.Current(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRedisProviderRetire(t *testing.T) {
	_, p := newRedisProviderUnderTest(t)
	ctx := context.Background()

	if err := p.Publish(ctx, Key{ID: "k1", Secret: secretA}, true); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := p.Publish(ctx, Key{ID: "k2", Secret: secretB}, true); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if err := p.Retire(ctx, "k1"); err != nil {
		t.Fatalf("Retire failed: %v", err)
	}
	if _, err := p.Lookup(ctx, "k1"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after retire, got %v", err)
	}
}
