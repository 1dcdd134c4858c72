package goidentity

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricRegisterSuccess counts subjects created through Register.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate counts registrations rejected for a taken email.
	MetricRegisterDuplicate
	// MetricLoginSuccess counts successful credential logins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected logins, whatever the reason.
	MetricLoginFailure
	// MetricVerifySuccess counts access tokens accepted by Verify.
	MetricVerifySuccess
	// MetricVerifyFailure counts access tokens rejected by Verify.
	MetricVerifyFailure
	// MetricRefreshSuccess counts completed pair rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts stale refresh presentations, the
	// replay signal.
	MetricRefreshReuseDetected
	// MetricSessionOpened counts sessions created at login.
	MetricSessionOpened
	// MetricSessionRevoked counts sessions revoked for any reason.
	MetricSessionRevoked
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricPasswordChangeSuccess counts completed password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeRejected counts password changes refused for a bad
	// current password or a reused new one.
	MetricPasswordChangeRejected
	// MetricPasswordResetRequest counts reset tokens issued.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess counts resets completed by token or code.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure counts rejected reset confirmations.
	MetricPasswordResetFailure
	// MetricEmailVerificationRequest counts verification tokens issued at
	// registration or resend.
	MetricEmailVerificationRequest
	// MetricEmailVerificationSuccess counts confirmed email verifications.
	MetricEmailVerificationSuccess
	// MetricEmailVerificationFailure counts rejected email verifications.
	MetricEmailVerificationFailure
	// MetricEmailChangeRequest counts change-email tokens issued.
	MetricEmailChangeRequest
	// MetricEmailChangeSuccess counts completed email swaps.
	MetricEmailChangeSuccess
	// MetricEmailChangeCancelled counts cancelled change-email flows.
	MetricEmailChangeCancelled
	// MetricRoleAssigned counts role edges added.
	MetricRoleAssigned
	// MetricRoleRevoked counts role edges removed.
	MetricRoleRevoked
	// MetricAuthorizationDenied counts guard rejections.
	MetricAuthorizationDenied
	// MetricVerifyLatency is the histogram over the Verify hot path.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine's in-process counters and the Verify latency
// histogram. All operations are atomic; a nil or disabled Metrics is a no-op
// on every method.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms, the
// shape consumed by the exporters under metrics/export.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a Metrics from config. Latency buckets are only recorded
// when both Enabled and EnableLatencyHistograms are set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the Verify histogram is being recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a duration sample into the histogram for id. Only
// MetricVerifyLatency carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram. Counters are loaded
// individually, so the snapshot is per-counter atomic rather than globally
// consistent.
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
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
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
