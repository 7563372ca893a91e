// Package prometheus renders goTrust engine counters in Prometheus text
// exposition format.
//
// Counter names are prefixed gotrust_ and end in _total; the single
// histogram is gotrust_validate_latency_seconds. Nothing is registered in a
// global registry: callers mount [PrometheusExporter.Handler] themselves.
package prometheus
