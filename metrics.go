package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram in the in-process metrics
// system. IDs are stable within a process but not across versions; use a
// metrics exporter for durable names.
type MetricID uint16

const (
	// MetricIssueSuccess counts successful token-pair issuances.
	MetricIssueSuccess MetricID = iota
	// MetricIssueFailure counts rejected issuance attempts.
	MetricIssueFailure
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rotations rejected for any reason other
	// than reuse or rate limiting.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts rotations that presented an
	// already-consumed refresh token.
	MetricRefreshReuseDetected
	// MetricRefreshRateLimited counts rotations rejected by the family
	// refresh budget.
	MetricRefreshRateLimited
	// MetricSessionRevoked counts refresh attempts against a revoked family.
	MetricSessionRevoked
	// MetricRevoke counts explicit single-session revocations.
	MetricRevoke
	// MetricRevokeAll counts administrative all-session revocations.
	MetricRevokeAll
	// MetricAuthorizeSuccess counts authorization checks that passed.
	MetricAuthorizeSuccess
	// MetricAuthorizeUnauthenticated counts checks rejected before
	// identity was established.
	MetricAuthorizeUnauthenticated
	// MetricAuthorizeForbidden counts checks rejected by role policy.
	MetricAuthorizeForbidden
	// MetricSubscriptionDenied counts checks rejected by a lapsed
	// subscription.
	MetricSubscriptionDenied
	// MetricStoreUnavailable counts operations that failed because the
	// revocation store did not answer.
	MetricStoreUnavailable
	// MetricAuthorizeLatency is the authorization latency histogram.
	MetricAuthorizeLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// Padding keeps hot counters on separate cache lines so concurrent
// increments do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free atomic counters and an optional authorization
// latency histogram. A nil or disabled Metrics is safe to call; every
// operation becomes a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one latency sample in the histogram identified by id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAuthorizeLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a deep copy of all counters and histograms.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthorizeLatency].buckets[i])
		}
		s.Histograms[MetricAuthorizeLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
