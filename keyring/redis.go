package keyring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = 30 * time.Second

	cacheKeyCurrent = "current"
	cacheKeyPrefix  = "secret:"
)

// RedisOptions tunes a [RedisProvider].
type RedisOptions struct {
	// Prefix namespaces the provider's Redis keys. Defaults to "ak".
	Prefix string

	// CacheTTL bounds how long a fetched key is served from the in-process
	// cache before Redis is consulted again. It is therefore also the upper
	// bound on rotation propagation lag across replicas. Defaults to 30s.
	CacheTTL time.Duration
}

// RedisProvider is a [Provider] whose key set lives in Redis, shared by all
// service replicas. Publishing a key on one replica makes it visible to the
// rest within [RedisOptions.CacheTTL].
//
// Layout: a hash (prefix:keys) mapping key ID to secret, and a plain string
// (prefix:current) naming the signing key.
type RedisProvider struct {
	redis  redis.UniversalClient
	prefix string
	cache  *ttlcache.Cache[string, []byte]
}

// NewRedisProvider creates a [RedisProvider] backed by the given client.
func NewRedisProvider(client redis.UniversalClient, opts RedisOptions) *RedisProvider {
	if opts.Prefix == "" {
		opts.Prefix = "ak"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, []byte](opts.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go cache.Start()

	return &RedisProvider{
		redis:  client,
		prefix: opts.Prefix,
		cache:  cache,
	}
}

func (p *RedisProvider) keysKey() string {
	return p.prefix + ":keys"
}

func (p *RedisProvider) currentKey() string {
	return p.prefix + ":current"
}

// Current implements [Provider].
func (p *RedisProvider) Current(ctx context.Context) (Key, error) {
	var currentID string
	if item := p.cache.Get(cacheKeyCurrent); item != nil {
		currentID = string(item.Value())
	} else {
		id, err := p.redis.Get(ctx, p.currentKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return Key{}, ErrNoCurrentKey
			}
			return Key{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		currentID = id
		p.cache.Set(cacheKeyCurrent, []byte(id), ttlcache.DefaultTTL)
	}

	secret, err := p.Lookup(ctx, currentID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return Key{}, ErrNoCurrentKey
		}
		return Key{}, err
	}

	return Key{ID: currentID, Secret: secret}, nil
}

// Lookup implements [Provider]. Misses are never cached so a key published
// elsewhere becomes resolvable immediately.
func (p *RedisProvider) Lookup(ctx context.Context, keyID string) ([]byte, error) {
	if item := p.cache.Get(cacheKeyPrefix + keyID); item != nil {
		return append([]byte(nil), item.Value()...), nil
	}

	secret, err := p.redis.HGet(ctx, p.keysKey(), keyID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	p.cache.Set(cacheKeyPrefix+keyID, secret, ttlcache.DefaultTTL)
	return append([]byte(nil), secret...), nil
}

// Publish stores key in Redis and, when makeCurrent is set, designates it
// as the signing key. The local cache is invalidated so this replica picks
// the key up on the next call.
func (p *RedisProvider) Publish(ctx context.Context, key Key, makeCurrent bool) error {
	if strings.TrimSpace(key.ID) == "" {
		return errors.New("key id must not be empty")
	}
	if len(key.Secret) < MinSecretLength {
		return fmt.Errorf("secret for key %q is shorter than %d bytes", key.ID, MinSecretLength)
	}

	_, err := p.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, p.keysKey(), key.ID, key.Secret)
		if makeCurrent {
			pipe.Set(ctx, p.currentKey(), key.ID, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	p.cache.Delete(cacheKeyCurrent)
	p.cache.Delete(cacheKeyPrefix + key.ID)
	return nil
}

// Retire removes a key from the shared set. Retiring the current signing
// key is rejected.
func (p *RedisProvider) Retire(ctx context.Context, keyID string) error {
	currentID, err := p.redis.Get(ctx, p.currentKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if keyID == currentID {
		return errors.New("cannot retire the current signing key")
	}

	if err := p.redis.HDel(ctx, p.keysKey(), keyID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	p.cache.Delete(cacheKeyPrefix + keyID)
	return nil
}

// Close stops the cache janitor goroutine.
func (p *RedisProvider) Close() {
	p.cache.Stop()
}
