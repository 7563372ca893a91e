// Package otel publishes goTrust engine counters through an OpenTelemetry
// Meter.
//
// [NewOTelExporter] registers one observable counter per engine counter and
// one observable gauge per histogram bucket, all read by a single callback
// from [goTrust.Engine.MetricsSnapshot]. The caller owns the MeterProvider.
package otel
