package authcore

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero access ttl",
			mutate:  func(c *Config) { c.Token.AccessTTL = 0 },
			wantErr: "AccessTTL",
		},
		{
			name:    "zero refresh ttl",
			mutate:  func(c *Config) { c.Token.RefreshTTL = 0 },
			wantErr: "RefreshTTL",
		},
		{
			name: "refresh shorter than access",
			mutate: func(c *Config) {
				c.Token.AccessTTL = time.Hour
				c.Token.RefreshTTL = time.Minute
			},
			wantErr: "RefreshTTL must be >= AccessTTL",
		},
		{
			name:    "negative leeway",
			mutate:  func(c *Config) { c.Token.Leeway = -time.Second },
			wantErr: "Leeway",
		},
		{
			name:    "empty key prefix",
			mutate:  func(c *Config) { c.Revocation.KeyPrefix = "" },
			wantErr: "KeyPrefix",
		},
		{
			name:    "zero store timeout",
			mutate:  func(c *Config) { c.Revocation.StoreTimeout = 0 },
			wantErr: "StoreTimeout",
		},
		{
			name:    "throttle without budget",
			mutate:  func(c *Config) { c.Throttle.MaxRefreshes = 0 },
			wantErr: "MaxRefreshes",
		},
		{
			name:    "throttle without window",
			mutate:  func(c *Config) { c.Throttle.RefreshWindow = 0 },
			wantErr: "RefreshWindow",
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantErr: "BufferSize",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestProductionModeCeilings(t *testing.T) {
	base := DefaultConfig()
	base.Security.ProductionMode = true
	if err := base.Validate(); err != nil {
		t.Fatalf("defaults should satisfy production mode: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "access ttl too long",
			mutate: func(c *Config) { c.Token.AccessTTL = time.Hour },
		},
		{
			name:   "refresh ttl too long",
			mutate: func(c *Config) { c.Token.RefreshTTL = 90 * 24 * time.Hour },
		},
		{
			name:   "leeway too loose",
			mutate: func(c *Config) { c.Token.Leeway = 10 * time.Minute },
		},
		{
			name:   "throttle disabled",
			mutate: func(c *Config) { c.Throttle = ThrottleConfig{} },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatal("production mode should reject this configuration")
			}
		})
	}
}

func TestBuildRequiresDependencies(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("Build without redis should fail")
	}

	_, client := newTestRedis(t)
	if _, err := New().WithRedis(client).Build(); err == nil {
		t.Fatal("Build without a key provider should fail")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, client := newTestRedis(t)

	cfg := DefaultConfig()
	cfg.Token.AccessTTL = 0

	_, err := New().
		WithRedis(client).
		WithKeyProvider(newTestKeyring(t)).
		WithConfig(cfg).
		Build()
	if err == nil {
		t.Fatal("Build should surface validation errors")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, client := newTestRedis(t)

	b := New().WithRedis(client).WithKeyProvider(newTestKeyring(t))
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(m.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("a builder builds exactly one manager")
	}
}
