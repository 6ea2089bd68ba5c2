// Package otel provides OpenTelemetry metric exporter bindings for the
// pipeline's counters and latency histogram.
//
// [NewExporter] registers one Int64ObservableCounter per counter, one
// Int64ObservableGauge per histogram bucket, and a counter for dropped audit
// records. A single callback snapshots the source on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate service state.
package otel
