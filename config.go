package authcore

import (
	"errors"
	"time"
)

// Config carries all manager tuning. Zero values are filled from
// [DefaultConfig] semantics by [Builder.Build]; a populated Config is
// treated as immutable after Build.
type Config struct {
	Token      TokenConfig
	Revocation RevocationConfig
	Throttle   ThrottleConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Security   SecurityConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls token lifetimes and expiry tolerance.
type TokenConfig struct {
	// AccessTTL is the lifetime of access tokens. Short by design: an
	// access token cannot be revoked, it can only run out.
	AccessTTL time.Duration
	// RefreshTTL is the lifetime of refresh tokens and the horizon of a
	// family's revocation records.
	RefreshTTL time.Duration
	// Leeway is the clock-skew tolerance applied to expiry checks.
	Leeway time.Duration
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig controls the revocation store.
type RevocationConfig struct {
	// KeyPrefix namespaces every revocation key in Redis.
	KeyPrefix string
	// StoreTimeout bounds each store round trip. Keep it tight: a store
	// that cannot answer in tens of milliseconds should fail the request
	// as unavailable, not stall it.
	StoreTimeout time.Duration
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig caps refresh rotations per family per window.
type ThrottleConfig struct {
	Enabled       bool
	MaxRefreshes  int
	RefreshWindow time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig carries posture toggles that tighten validation.
type SecurityConfig struct {
	// ProductionMode enforces conservative TTL and leeway ceilings at
	// Build time.
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the starting configuration used by [New].
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Leeway:     30 * time.Second,
		},
		Revocation: RevocationConfig{
			KeyPrefix:    "ac",
			StoreTimeout: 50 * time.Millisecond,
		},
		Throttle: ThrottleConfig{
			Enabled:       true,
			MaxRefreshes:  20,
			RefreshWindow: 1 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the copy exists so Build owns its
	// configuration even if callers mutate theirs afterwards.
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found, or nil.
func (c *Config) Validate() error {
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must be >= AccessTTL")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}

	if c.Revocation.KeyPrefix == "" {
		return errors.New("Revocation KeyPrefix is required")
	}
	if c.Revocation.StoreTimeout <= 0 {
		return errors.New("Revocation StoreTimeout must be > 0")
	}

	if c.Throttle.Enabled {
		if c.Throttle.MaxRefreshes <= 0 {
			return errors.New("Throttle MaxRefreshes must be > 0 when throttle is enabled")
		}
		if c.Throttle.RefreshWindow <= 0 {
			return errors.New("Throttle RefreshWindow must be > 0 when throttle is enabled")
		}
	}

	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	if c.Security.ProductionMode {
		if c.Token.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires Token AccessTTL <= 15m")
		}
		if c.Token.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires Token RefreshTTL <= 30d")
		}
		if c.Token.Leeway > 2*time.Minute {
			return errors.New("ProductionMode requires Token Leeway <= 2m")
		}
		if !c.Throttle.Enabled {
			return errors.New("ProductionMode requires refresh throttle")
		}
	}

	return nil
}
