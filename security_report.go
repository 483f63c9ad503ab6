package authcore

import "time"

// SecurityReport is a read-only snapshot of the manager's security
// posture, suitable for startup logging or an ops endpoint.
type SecurityReport struct {
	ProductionMode          bool
	SigningAlgorithm        string
	AccessTTL               time.Duration
	RefreshTTL              time.Duration
	Leeway                  time.Duration
	RefreshRotationEnabled  bool
	ReuseDetectionEnabled   bool
	RefreshThrottleActive   bool
	AuditEnabled            bool
	MetricsEnabled          bool
	SubscriptionGateEnabled bool
}

// SecurityReport reports the active configuration.
func (m *Manager) SecurityReport() SecurityReport {
	if m == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:   m.config.Security.ProductionMode,
		SigningAlgorithm: "HS256",
		AccessTTL:        m.config.Token.AccessTTL,
		RefreshTTL:       m.config.Token.RefreshTTL,
		Leeway:           m.config.Token.Leeway,
		// Rotation and reuse detection are structural, not toggles.
		RefreshRotationEnabled:  true,
		ReuseDetectionEnabled:   true,
		RefreshThrottleActive:   m.limiter != nil,
		AuditEnabled:            m.audit != nil,
		MetricsEnabled:          m.metrics.Enabled(),
		SubscriptionGateEnabled: m.subscriptions != nil,
	}
}
