package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tripatlas/authcore/internal/throttle"
	"github.com/tripatlas/authcore/keyring"
	"github.com/tripatlas/authcore/revocation"
	"github.com/tripatlas/authcore/token"
)

// Builder assembles a [Manager]. One builder builds one manager.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	keys          keyring.Provider
	subscriptions SubscriptionChecker
	auditSink     AuditSink
	clock         Clock
	logger        *zerolog.Logger

	built bool
}

// New returns a [Builder] loaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the revocation store and the
// refresh throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithKeyProvider sets the signing keyring.
func (b *Builder) WithKeyProvider(keys keyring.Provider) *Builder {
	b.keys = keys
	return b
}

// WithSubscriptionChecker wires the live subscription lookup used by
// subscription-gated policies. Optional; without it those policies always
// deny.
func (b *Builder) WithSubscriptionChecker(sc SubscriptionChecker) *Builder {
	b.subscriptions = sc
	return b
}

// WithAuditSink sets the destination for audit events. Ignored unless
// [AuditConfig.Enabled] is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithMetricsEnabled toggles the in-process metrics system.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authorization latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires all components, and returns a
// ready [Manager].
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.keys == nil {
		return nil, errors.New("key provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = systemClock
	}
	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	codec, err := token.NewCodec(b.keys, token.Config{
		Leeway: cfg.Token.Leeway,
		Now:    clock,
	})
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		config:        cfg,
		clock:         clock,
		logger:        logger,
		codec:         codec,
		subscriptions: b.subscriptions,
		store: revocation.NewStore(
			b.redis,
			cfg.Revocation.KeyPrefix,
			cfg.Revocation.StoreTimeout,
		),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	if cfg.Throttle.Enabled {
		manager.limiter = throttle.New(b.redis, cfg.Revocation.KeyPrefix, throttle.Config{
			Enabled:     true,
			MaxAttempts: cfg.Throttle.MaxRefreshes,
			Window:      cfg.Throttle.RefreshWindow,
		})
	}

	b.built = true

	return manager, nil
}
