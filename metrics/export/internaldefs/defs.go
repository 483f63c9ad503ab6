package internaldefs

import (
	authcore "github.com/tripatlas/authcore"
)

// CounterDef binds a core metric ID to its durable exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds a core histogram ID to its durable exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter. Order is the exposition order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricIssueSuccess, Name: "authcore_issue_success_total", Help: "Successful token pair issuances."},
	{ID: authcore.MetricIssueFailure, Name: "authcore_issue_failure_total", Help: "Rejected issuance attempts."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: authcore.MetricRefreshRateLimited, Name: "authcore_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: authcore.MetricSessionRevoked, Name: "authcore_session_revoked_total", Help: "Refresh attempts against revoked families."},
	{ID: authcore.MetricRevoke, Name: "authcore_revoke_total", Help: "Single-session revocations."},
	{ID: authcore.MetricRevokeAll, Name: "authcore_revoke_all_total", Help: "Administrative all-session revocations."},
	{ID: authcore.MetricAuthorizeSuccess, Name: "authcore_authorize_success_total", Help: "Authorization checks that passed."},
	{ID: authcore.MetricAuthorizeUnauthenticated, Name: "authcore_authorize_unauthenticated_total", Help: "Authorization checks rejected before identity was established."},
	{ID: authcore.MetricAuthorizeForbidden, Name: "authcore_authorize_forbidden_total", Help: "Authorization checks rejected by policy."},
	{ID: authcore.MetricSubscriptionDenied, Name: "authcore_subscription_denied_total", Help: "Authorization checks rejected by a lapsed subscription."},
	{ID: authcore.MetricStoreUnavailable, Name: "authcore_store_unavailable_total", Help: "Operations failed by a revocation store outage."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricAuthorizeLatency, Name: "authcore_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramBounds are the le label values matching the core bucket layout.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with metric-name-safe
// spellings for backends that cannot carry le labels.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket layout.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// Prometheus histograms expose.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
