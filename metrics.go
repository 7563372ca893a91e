package goTrust

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricPasskeyLoginSuccess MetricID = iota
	MetricPasskeyLoginFailure
	MetricOTPSent
	MetricOTPSendFailure
	MetricOTPLoginSuccess
	MetricOTPLoginFailure
	MetricTOTPLoginSuccess
	MetricTOTPLoginFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRateLimited
	MetricLoginRateLimited
	MetricRateLimitHit
	MetricSessionCreated
	MetricSessionValidated
	MetricSessionInvalidated
	MetricLogout
	MetricLogoutAll
	MetricStepUpRequired
	MetricMFAEnforcementChanged
	MetricMethodRemoved
	MetricDeviceTrustEstablished
	MetricDeviceTrustRevoked
	MetricDeviceAutoBlocked
	MetricTokenUnavailable

	// Latency histograms follow the counters.
	MetricValidateLatency
	MetricRefreshLatency
	MetricPasskeyLoginLatency
	metricIDCount
)

const firstHistogram = MetricValidateLatency

// latencyBounds are the inclusive upper bounds of all but the last bucket.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(latencyBounds) + 1

// paddedCounter keeps hot counters on separate cache lines.
type paddedCounter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free engine counters and latency histograms.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [firstHistogram]paddedCounter
	histograms    [metricIDCount - firstHistogram][histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// IsHistogram reports whether id names a latency histogram.
func (id MetricID) IsHistogram() bool {
	return id >= firstHistogram && id < metricIDCount
}

// NewMetrics returns counters configured by cfg. A disabled Metrics accepts
// every call and records nothing.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to a counter. Histogram ids are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= firstHistogram {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in a latency histogram. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !id.IsHistogram() {
		return
	}
	m.histograms[id-firstHistogram][bucketIndex(d)].Add(1)
}

// Value returns the current value of a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= firstHistogram {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter, and every histogram when latency is
// enabled. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < firstHistogram; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.enableLatency {
		for id := firstHistogram; id < metricIDCount; id++ {
			buckets := make([]uint64, histBucketCount)
			for i := range buckets {
				buckets[i] = m.histograms[id-firstHistogram][i].Load()
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
