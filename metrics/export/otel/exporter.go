package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/quantpulse/brokerauth"
)

var (
	// ErrNilMeter is an exported constant or variable used by the metrics exporter.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is an exported constant or variable used by the metrics exporter.
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads on every collection cycle. A
// [brokerauth.Service] satisfies it.
type Source interface {
	MetricsSnapshot() brokerauth.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	id   brokerauth.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{brokerauth.MetricMediateSuccess, "brokerauth_mediate_success_total", "Mediated operations that completed successfully."},
	{brokerauth.MetricAuthnDenied, "brokerauth_authn_denied_total", "Requests denied by the authentication stage."},
	{brokerauth.MetricAuthzDenied, "brokerauth_authz_denied_total", "Requests denied by the authorization stage."},
	{brokerauth.MetricRiskDenied, "brokerauth_risk_denied_total", "Requests denied by risk scoring."},
	{brokerauth.MetricRateLimited, "brokerauth_rate_limited_total", "Requests denied by rate-limit saturation."},
	{brokerauth.MetricOperationFailed, "brokerauth_operation_failed_total", "Gated operations that failed after passing the gate."},
	{brokerauth.MetricSessionCreated, "brokerauth_session_created_total", "Broker sessions created."},
	{brokerauth.MetricSessionRevoked, "brokerauth_session_revoked_total", "Broker sessions revoked."},
	{brokerauth.MetricRefreshSuccess, "brokerauth_refresh_success_total", "Successful token refreshes."},
	{brokerauth.MetricRefreshFailure, "brokerauth_refresh_failure_total", "Failed token refreshes."},
	{brokerauth.MetricSweepSkipped, "brokerauth_sweep_skipped_total", "Refresh ticks skipped because a sweep was in flight."},
}

// latencyBucketNames suffix the mediate-latency gauge per upper bound in
// milliseconds; order matches the snapshot's bucket order.
var latencyBucketNames = []string{"10", "25", "50", "100", "250", "500", "1000", "inf"}

const (
	latencyMetricName = "brokerauth_mediate_latency_ms"
	droppedMetricName = "brokerauth_audit_dropped_total"
)

type boundCounter struct {
	id         brokerauth.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter mirrors a [Source] into OTel observable instruments. It holds no
// state of its own beyond the callback registration.
type Exporter struct {
	source         Source
	registration   metric.Registration
	counters       []boundCounter
	latencyBuckets []metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge
	auditDropped   metric.Int64ObservableCounter
}

// NewExporter registers the instruments and the collection callback on meter.
// Close unregisters them.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make([]boundCounter, 0, len(counterDefs)),
	}
	observables := make([]metric.Observable, 0, len(counterDefs)+len(latencyBucketNames)+2)

	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.name, err)
		}
		e.counters = append(e.counters, boundCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	for _, suffix := range latencyBucketNames {
		name := latencyMetricName + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative latency bucket count."))
		if err != nil {
			return nil, fmt.Errorf("create latency gauge %s: %w", name, err)
		}
		e.latencyBuckets = append(e.latencyBuckets, ins)
		observables = append(observables, ins)
	}
	latencyCount, err := meter.Int64ObservableGauge(latencyMetricName+"_count", metric.WithDescription("Total observed mediated calls."))
	if err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	e.latencyCount = latencyCount
	observables = append(observables, latencyCount)

	auditDropped, err := meter.Int64ObservableCounter(droppedMetricName, metric.WithDescription("Audit records dropped under dispatcher backpressure."))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(e.collect, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration

	return e, nil
}

func (e *Exporter) collect(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}

	// Buckets are published cumulatively; a disabled histogram reads as all
	// zeros rather than missing instruments.
	var running uint64
	for i, gauge := range e.latencyBuckets {
		if i < len(snapshot.LatencyBuckets) {
			running += snapshot.LatencyBuckets[i]
		}
		observer.ObserveInt64(gauge, int64(running))
	}
	observer.ObserveInt64(e.latencyCount, int64(running))

	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
