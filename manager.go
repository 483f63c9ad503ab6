package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripatlas/authcore/internal"
	"github.com/tripatlas/authcore/internal/throttle"
	"github.com/tripatlas/authcore/keyring"
	"github.com/tripatlas/authcore/revocation"
	"github.com/tripatlas/authcore/token"
)

// Manager issues, rotates, revokes, and validates session tokens. It is
// safe for concurrent use and is intended to be built once at startup via
// [Builder.Build] and shared across requests.
//
// Access tokens are validated statelessly: signature plus expiry, no store
// round trip. Refresh tokens are single-use and chained into families; the
// revocation store arbitrates rotation races and remembers theft.
type Manager struct {
	config        Config
	clock         Clock
	logger        zerolog.Logger
	codec         *token.Codec
	store         *revocation.Store
	limiter       *throttle.Limiter
	subscriptions SubscriptionChecker
	audit         *auditDispatcher
	metrics       *Metrics
}

// Close flushes and stops background workers. Call on shutdown.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	if m.audit != nil {
		m.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under load.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

// Issue mints a fresh access+refresh pair for an already-authenticated
// principal and starts a new refresh family. Credential verification is
// the caller's job; Issue trusts its inputs.
func (m *Manager) Issue(ctx context.Context, subjectID string, role Role) (TokenPair, error) {
	if m == nil || m.codec == nil {
		return TokenPair{}, ErrManagerNotReady
	}
	if subjectID == "" || !role.Valid() {
		m.metricInc(MetricIssueFailure)
		m.emitAudit(ctx, auditEventIssueFailure, false, subjectID, "", "", ErrInvalidPrincipal, nil)
		return TokenPair{}, ErrInvalidPrincipal
	}

	familyID, err := internal.NewFamilyID(m.clock())
	if err != nil {
		m.metricInc(MetricIssueFailure)
		m.emitAudit(ctx, auditEventIssueFailure, false, subjectID, "", "", err, nil)
		return TokenPair{}, fmt.Errorf("family id generation: %w", err)
	}

	pair, refreshID, err := m.mintPair(ctx, subjectID, role, familyID)
	if err != nil {
		m.metricInc(MetricIssueFailure)
		m.emitAudit(ctx, auditEventIssueFailure, false, subjectID, "", familyID, err, nil)
		return TokenPair{}, err
	}

	// The subject index is what makes RevokeAllForSubject possible. A pair
	// whose family is untracked would survive an administrative revocation,
	// so a failed registration fails the whole issuance.
	if err := m.store.RegisterFamily(ctx, subjectID, familyID, m.config.Token.RefreshTTL); err != nil {
		m.metricInc(MetricStoreUnavailable)
		m.metricInc(MetricIssueFailure)
		m.emitAudit(ctx, auditEventIssueFailure, false, subjectID, refreshID, familyID, err, nil)
		return TokenPair{}, err
	}

	m.metricInc(MetricIssueSuccess)
	m.emitAudit(ctx, auditEventIssueSuccess, true, subjectID, refreshID, familyID, nil, func() map[string]string {
		return map[string]string{
			"role": string(role),
		}
	})

	return pair, nil
}

// Refresh exchanges a live refresh token for a new access+refresh pair.
// Each refresh token works exactly once. A second presentation is treated
// as theft evidence: the whole family is revoked and [ErrReuseDetected]
// is returned, to both racers if they tie.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if m == nil || m.codec == nil {
		return TokenPair{}, ErrManagerNotReady
	}

	claims, err := m.decode(ctx, refreshToken)
	if err != nil {
		m.refreshFailure(ctx, "", "", "", err, "decode_failed")
		return TokenPair{}, err
	}
	if claims.FamilyID == "" {
		// An access token on the refresh path. Never rotatable.
		m.refreshFailure(ctx, claims.Subject, claims.TokenID, "", ErrTokenMalformed, "missing_family")
		return TokenPair{}, ErrTokenMalformed
	}

	if m.limiter != nil {
		if err := m.limiter.Check(ctx, claims.FamilyID); err != nil {
			if errors.Is(err, throttle.ErrLimited) {
				m.metricInc(MetricRefreshRateLimited)
				m.emitAudit(ctx, auditEventRefreshRateLimited, false, claims.Subject, claims.TokenID, claims.FamilyID, ErrRefreshRateLimited, nil)
				return TokenPair{}, ErrRefreshRateLimited
			}
			m.metricInc(MetricStoreUnavailable)
			m.metricInc(MetricRefreshFailure)
			err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			m.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.TokenID, claims.FamilyID, err, nil)
			return TokenPair{}, err
		}
	}

	outcome, err := m.store.Rotate(
		ctx,
		claims.TokenID,
		claims.FamilyID,
		m.remainingLifetime(claims.ExpiresAt),
		m.config.Token.RefreshTTL,
	)
	if err != nil {
		m.metricInc(MetricStoreUnavailable)
		m.metricInc(MetricRefreshFailure)
		m.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.TokenID, claims.FamilyID, err, nil)
		return TokenPair{}, err
	}

	switch outcome {
	case revocation.RotateReused:
		m.metricInc(MetricRefreshReuseDetected)
		m.emitAudit(ctx, auditEventRefreshReuseDetected, false, claims.Subject, claims.TokenID, claims.FamilyID, ErrReuseDetected, nil)
		m.resetThrottle(ctx, claims.FamilyID)
		return TokenPair{}, ErrReuseDetected
	case revocation.RotateFamilyRevoked:
		m.metricInc(MetricSessionRevoked)
		m.emitAudit(ctx, auditEventSessionRevoked, false, claims.Subject, claims.TokenID, claims.FamilyID, ErrSessionRevoked, nil)
		return TokenPair{}, ErrSessionRevoked
	}

	role := Role(claims.Role)
	pair, refreshID, err := m.mintPair(ctx, claims.Subject, role, claims.FamilyID)
	if err != nil {
		m.metricInc(MetricRefreshFailure)
		m.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.TokenID, claims.FamilyID, err, func() map[string]string {
			return map[string]string{
				"reason": "mint_failed",
			}
		})
		return TokenPair{}, err
	}

	// Keep the subject index alive as long as the newest refresh token.
	if err := m.store.RegisterFamily(ctx, claims.Subject, claims.FamilyID, m.config.Token.RefreshTTL); err != nil {
		m.logger.Warn().Err(err).Str("family_id", claims.FamilyID).Msg("subject index refresh failed")
	}

	m.metricInc(MetricRefreshSuccess)
	m.emitAudit(ctx, auditEventRefreshSuccess, true, claims.Subject, refreshID, claims.FamilyID, nil, nil)

	return pair, nil
}

// Revoke ends the session behind a refresh token: the token itself and its
// whole family are recorded as revoked. Idempotent. An expired token is
// reported as [ErrTokenExpired]; the session it belonged to is already dead.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) error {
	if m == nil || m.codec == nil {
		return ErrManagerNotReady
	}

	claims, err := m.decode(ctx, refreshToken)
	if err != nil {
		m.emitAudit(ctx, auditEventRevoke, false, "", "", "", err, nil)
		return err
	}
	if claims.FamilyID == "" {
		m.emitAudit(ctx, auditEventRevoke, false, claims.Subject, claims.TokenID, "", ErrTokenMalformed, nil)
		return ErrTokenMalformed
	}

	if _, err := m.store.MarkRevoked(ctx, claims.TokenID, m.remainingLifetime(claims.ExpiresAt)); err != nil {
		m.metricInc(MetricStoreUnavailable)
		m.emitAudit(ctx, auditEventRevoke, false, claims.Subject, claims.TokenID, claims.FamilyID, err, nil)
		return err
	}
	if err := m.store.MarkFamilyRevoked(ctx, claims.FamilyID, m.config.Token.RefreshTTL); err != nil {
		m.metricInc(MetricStoreUnavailable)
		m.emitAudit(ctx, auditEventRevoke, false, claims.Subject, claims.TokenID, claims.FamilyID, err, nil)
		return err
	}
	m.resetThrottle(ctx, claims.FamilyID)

	m.metricInc(MetricRevoke)
	m.emitAudit(ctx, auditEventRevoke, true, claims.Subject, claims.TokenID, claims.FamilyID, nil, nil)

	return nil
}

// RevokeAllForSubject revokes every tracked session family of a subject.
// Used for forced logout and credential resets. Returns the number of
// families revoked.
func (m *Manager) RevokeAllForSubject(ctx context.Context, subjectID string) (int, error) {
	if m == nil || m.store == nil {
		return 0, ErrManagerNotReady
	}
	if subjectID == "" {
		return 0, ErrInvalidPrincipal
	}

	count, err := m.store.RevokeAllForSubject(ctx, subjectID, m.config.Token.RefreshTTL)
	if err != nil {
		m.metricInc(MetricStoreUnavailable)
		m.emitAudit(ctx, auditEventRevokeAll, false, subjectID, "", "", err, nil)
		return 0, err
	}

	m.metricInc(MetricRevokeAll)
	m.emitAudit(ctx, auditEventRevokeAll, true, subjectID, "", "", nil, func() map[string]string {
		return map[string]string{
			"families_revoked": fmt.Sprintf("%d", count),
		}
	})

	return count, nil
}

// Authorize validates an access token and checks it against policy. The
// hot path is stateless: signature and expiry only, no store round trip.
// Subscription-gated policies add one live lookup through the configured
// [SubscriptionChecker]; subscription state is never trusted from the
// token.
func (m *Manager) Authorize(ctx context.Context, accessToken string, policy Policy) (Principal, error) {
	if m == nil || m.codec == nil {
		return Principal{}, ErrManagerNotReady
	}
	if m.metrics != nil && m.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			m.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
		}()
	}

	if accessToken == "" {
		m.metricInc(MetricAuthorizeUnauthenticated)
		return Principal{}, ErrUnauthenticated
	}

	claims, err := m.decode(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			m.metricInc(MetricStoreUnavailable)
		} else {
			m.metricInc(MetricAuthorizeUnauthenticated)
		}
		return Principal{}, err
	}
	if claims.FamilyID != "" {
		// A refresh token on the access path. Long-lived credentials never
		// authorize requests directly.
		m.metricInc(MetricAuthorizeUnauthenticated)
		return Principal{}, ErrTokenMalformed
	}

	role := Role(claims.Role)
	if !role.Valid() {
		m.metricInc(MetricAuthorizeUnauthenticated)
		return Principal{}, ErrTokenMalformed
	}

	if !policy.allowsRole(role) {
		m.metricInc(MetricAuthorizeForbidden)
		m.emitAudit(ctx, auditEventAuthorizeDenied, false, claims.Subject, claims.TokenID, "", ErrForbidden, func() map[string]string {
			return map[string]string{
				"reason": "role",
				"role":   string(role),
			}
		})
		return Principal{}, ErrForbidden
	}

	if policy.RequireActiveSubscription {
		if err := m.checkSubscription(ctx, claims.Subject); err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				m.metricInc(MetricStoreUnavailable)
			} else {
				m.metricInc(MetricSubscriptionDenied)
				m.metricInc(MetricAuthorizeForbidden)
			}
			m.emitAudit(ctx, auditEventAuthorizeDenied, false, claims.Subject, claims.TokenID, "", err, func() map[string]string {
				return map[string]string{
					"reason": "subscription",
				}
			})
			return Principal{}, err
		}
	}

	m.metricInc(MetricAuthorizeSuccess)

	return Principal{
		SubjectID: claims.Subject,
		Role:      role,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (m *Manager) checkSubscription(ctx context.Context, subjectID string) error {
	if m.subscriptions == nil {
		// No checker wired means subscription routes cannot be satisfied.
		return ErrForbidden
	}

	status, err := m.subscriptions.SubscriptionStatus(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("%w: subscription lookup: %v", ErrStoreUnavailable, err)
	}
	if !status.Active {
		return ErrForbidden
	}
	if !status.ExpiresAt.IsZero() && !status.ExpiresAt.After(m.clock()) {
		return ErrForbidden
	}

	return nil
}

// mintPair signs a new access+refresh token pair sharing subject, role,
// and family. Returns the refresh token's ID for audit correlation.
func (m *Manager) mintPair(ctx context.Context, subjectID string, role Role, familyID string) (TokenPair, string, error) {
	now := m.clock()

	access, err := m.codec.Encode(ctx, token.Claims{
		Subject: subjectID,
		Role:    string(role),
		TokenID: internal.NewTokenID(),
	}, m.config.Token.AccessTTL)
	if err != nil {
		return TokenPair{}, "", m.mapKeyringErr(err)
	}

	refreshID := internal.NewTokenID()
	refresh, err := m.codec.Encode(ctx, token.Claims{
		Subject:  subjectID,
		Role:     string(role),
		TokenID:  refreshID,
		FamilyID: familyID,
	}, m.config.Token.RefreshTTL)
	if err != nil {
		return TokenPair{}, "", m.mapKeyringErr(err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(m.config.Token.AccessTTL),
		RefreshExpiresAt: now.Add(m.config.Token.RefreshTTL),
	}, refreshID, nil
}

func (m *Manager) decode(ctx context.Context, tokenStr string) (token.Claims, error) {
	claims, err := m.codec.Decode(ctx, tokenStr)
	if err != nil {
		return token.Claims{}, m.mapKeyringErr(err)
	}
	return claims, nil
}

// A keyring outage is the same operational condition as a revocation store
// outage: infrastructure down, fail closed, retryable.
func (m *Manager) mapKeyringErr(err error) error {
	if errors.Is(err, keyring.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// remainingLifetime is how long a revocation record for this token must
// outlive it, leeway included so the record cannot expire while the token
// is still accepted.
func (m *Manager) remainingLifetime(expiresAt time.Time) time.Duration {
	remaining := expiresAt.Add(m.config.Token.Leeway).Sub(m.clock())
	if remaining < time.Second {
		remaining = time.Second
	}
	return remaining
}

func (m *Manager) refreshFailure(ctx context.Context, subjectID, tokenID, familyID string, err error, reason string) {
	if errors.Is(err, ErrStoreUnavailable) {
		m.metricInc(MetricStoreUnavailable)
	}
	m.metricInc(MetricRefreshFailure)
	m.emitAudit(ctx, auditEventRefreshInvalid, false, subjectID, tokenID, familyID, err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
}

func (m *Manager) resetThrottle(ctx context.Context, familyID string) {
	if m.limiter == nil {
		return
	}
	// Best effort; a lingering counter key expires on its own.
	if err := m.limiter.Reset(ctx, familyID); err != nil {
		m.logger.Warn().Err(err).Str("family_id", familyID).Msg("throttle reset failed")
	}
}
