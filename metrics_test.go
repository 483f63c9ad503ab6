package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricIssueSuccess)
	m.Observe(MetricAuthorizeLatency, time.Millisecond)

	if v := m.Value(MetricIssueSuccess); v != 0 {
		t.Fatalf("disabled metrics should stay at zero, got %d", v)
	}

	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatal("disabled snapshot should be empty")
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics

	m.Inc(MetricIssueSuccess)
	m.Observe(MetricAuthorizeLatency, time.Millisecond)
	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if v := m.Value(MetricIssueSuccess); v != 0 {
		t.Fatalf("nil Value should be 0, got %d", v)
	}
	_ = m.Snapshot()
}

func TestMetricsIncAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricIssueSuccess)
	m.Inc(MetricIssueSuccess)
	m.Inc(MetricRefreshReuseDetected)

	if v := m.Value(MetricIssueSuccess); v != 2 {
		t.Fatalf("expected 2, got %d", v)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricIssueSuccess] != 2 {
		t.Fatalf("snapshot disagrees with Value: %d", snap.Counters[MetricIssueSuccess])
	}
	if snap.Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatalf("expected 1 reuse, got %d", snap.Counters[MetricRefreshReuseDetected])
	}
	if snap.Counters[MetricRevoke] != 0 {
		t.Fatal("untouched counter should be zero")
	}

	// Mutating the snapshot must not touch the live counters.
	snap.Counters[MetricIssueSuccess] = 99
	if v := m.Value(MetricIssueSuccess); v != 2 {
		t.Fatalf("snapshot mutation leaked into metrics: %d", v)
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []time.Duration{
		2 * time.Millisecond,   // bucket 0
		8 * time.Millisecond,   // bucket 1
		40 * time.Millisecond,  // bucket 3
		400 * time.Millisecond, // bucket 6
		2 * time.Second,        // bucket 7
	}
	for _, d := range samples {
		m.Observe(MetricAuthorizeLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricAuthorizeLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	want := []uint64{1, 1, 0, 1, 0, 0, 1, 1}
	for i, n := range want {
		if buckets[i] != n {
			t.Fatalf("bucket %d: expected %d, got %d", i, n, buckets[i])
		}
	}

	// Non-latency IDs are not histograms.
	m.Observe(MetricIssueSuccess, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricIssueSuccess]; ok {
		t.Fatal("counter IDs must not grow histograms")
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Inc(MetricAuthorizeSuccess)
			}
		}()
	}
	wg.Wait()

	if v := m.Value(MetricAuthorizeSuccess); v != goroutines*perGoroutine {
		t.Fatalf("expected %d, got %d", goroutines*perGoroutine, v)
	}
}

func TestManagerCountsOperations(t *testing.T) {
	m, _, _ := newTestManager(t, func(b *Builder) {
		b.WithMetricsEnabled(true)
	})
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-1", RoleStandard)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := m.Authorize(ctx, pair.AccessToken, Policy{}); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	next, err := m.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := m.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected, got %v", err)
	}
	if _, err := m.Refresh(ctx, next.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}

	snap := m.MetricsSnapshot()
	checks := map[MetricID]uint64{
		MetricIssueSuccess:         1,
		MetricAuthorizeSuccess:     1,
		MetricRefreshSuccess:       1,
		MetricRefreshReuseDetected: 1,
		MetricSessionRevoked:       1,
	}
	for id, want := range checks {
		if got := snap.Counters[id]; got != want {
			t.Fatalf("counter %d: expected %d, got %d", id, want, got)
		}
	}
}

func TestManagerObservesAuthorizeLatency(t *testing.T) {
	slow := SubscriptionCheckerFunc(func(ctx context.Context, subjectID string) (SubscriptionStatus, error) {
		time.Sleep(60 * time.Millisecond)
		return SubscriptionStatus{Active: true}, nil
	})
	m, _, _ := newTestManager(t, func(b *Builder) {
		b.WithMetricsEnabled(true)
		b.WithLatencyHistograms(true)
		b.WithSubscriptionChecker(slow)
	})
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-1", RoleStandard)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := m.Authorize(ctx, pair.AccessToken, Policy{RequireActiveSubscription: true}); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}

	buckets := m.MetricsSnapshot().Histograms[MetricAuthorizeLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	var total uint64
	for _, n := range buckets {
		total += n
	}
	if total != 1 {
		t.Fatalf("expected exactly one sample, got %d", total)
	}
	// The subscription lookup alone took 60ms, so the sample must land
	// past the sub-5ms bucket. A sample there means the duration was
	// captured at defer time instead of at return.
	if buckets[0] != 0 {
		t.Fatal("60ms authorize call recorded in the sub-5ms bucket")
	}
}
