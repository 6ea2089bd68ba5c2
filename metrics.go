package brokerauth

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by brokerauth APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricMediateSuccess is an exported constant or variable used by the mediation pipeline.
	MetricMediateSuccess MetricID = iota
	// MetricAuthnDenied is an exported constant or variable used by the mediation pipeline.
	MetricAuthnDenied
	// MetricAuthzDenied is an exported constant or variable used by the mediation pipeline.
	MetricAuthzDenied
	// MetricRiskDenied is an exported constant or variable used by the mediation pipeline.
	MetricRiskDenied
	// MetricRateLimited is an exported constant or variable used by the mediation pipeline.
	MetricRateLimited
	// MetricOperationFailed is an exported constant or variable used by the mediation pipeline.
	MetricOperationFailed
	// MetricSessionCreated is an exported constant or variable used by the mediation pipeline.
	MetricSessionCreated
	// MetricSessionRevoked is an exported constant or variable used by the mediation pipeline.
	MetricSessionRevoked
	// MetricRefreshSuccess is an exported constant or variable used by the refresh engine.
	MetricRefreshSuccess
	// MetricRefreshFailure is an exported constant or variable used by the refresh engine.
	MetricRefreshFailure
	// MetricSweepSkipped is an exported constant or variable used by the refresh engine.
	MetricSweepSkipped
	// MetricMediateLatency is an exported constant or variable used by the mediation pipeline.
	MetricMediateLatency
	metricIDCount
)

const (
	latencyBucketCount = 8
	counterPadBytes    = 56
)

// latencyBoundsMs are the upper bucket bounds in milliseconds; the last
// bucket is unbounded. Mediated calls include broker round-trips, so the
// scale runs wider than a pure in-process pipeline would need.
var latencyBoundsMs = [latencyBucketCount - 1]int64{10, 25, 50, 100, 250, 500, 1000}

// Each counter gets its own cache line so hot increments on different
// metrics do not false-share.
type shardedCounter struct {
	n atomic.Uint64
	_ [counterPadBytes]byte
}

// Metrics defines a public type used by brokerauth APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled bool
	latency bool

	counters [metricIDCount]shardedCounter
	buckets  [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot defines a public type used by brokerauth APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
	// LatencyBuckets is the non-cumulative mediated-call latency histogram,
	// empty when the histogram is disabled.
	LatencyBuckets []uint64
}

// NewMetrics creates the process-wide collector. A disabled collector keeps
// every recording call a no-op, so call sites never branch.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistogram,
	}
}

// Enabled reports whether the collector records anything at all.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter behind id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records one mediated-call duration in the latency histogram.
func (m *Metrics) Observe(d time.Duration) {
	if m == nil || !m.latency {
		return
	}
	m.buckets[latencyBucket(d)].Add(1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].n.Load()
}

// Snapshot copies every counter and the latency histogram at one point in
// time. Reads are individually atomic, not collectively: a snapshot taken
// under load is internally consistent per metric only.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	if m == nil || !m.enabled {
		return snap
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].n.Load()
	}

	if m.latency {
		snap.LatencyBuckets = make([]uint64, latencyBucketCount)
		for i := range m.buckets {
			snap.LatencyBuckets[i] = m.buckets[i].Load()
		}
	}

	return snap
}

func latencyBucket(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range latencyBoundsMs {
		if ms <= bound {
			return i
		}
	}
	return latencyBucketCount - 1
}

// refreshRecorder bridges the refresh engine's outcome counts into the
// collector; the engine's package cannot import this one.
type refreshRecorder struct{ m *Metrics }

func (r refreshRecorder) RefreshSucceeded() { r.m.Inc(MetricRefreshSuccess) }
func (r refreshRecorder) RefreshFailed()    { r.m.Inc(MetricRefreshFailure) }
func (r refreshRecorder) SweepSkipped()     { r.m.Inc(MetricSweepSkipped) }

// metricForDenial maps a pipeline denial code to the stage counter it
// belongs to.
func metricForDenial(code Code) MetricID {
	switch code {
	case CodeContextInvalid, CodeAuthenticationFailed, CodeInvalidCredentials, CodeExpiredCredentials, CodeAccountLocked:
		return MetricAuthnDenied
	case CodeAuthorizationFailed, CodeInsufficientPrivileges:
		return MetricAuthzDenied
	case CodeRiskTooHigh, CodeSuspiciousActivity:
		return MetricRiskDenied
	case CodeRateLimitExceeded:
		return MetricRateLimited
	default:
		return MetricOperationFailed
	}
}
