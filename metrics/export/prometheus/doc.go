// Package prometheus renders carauth engine metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps a *carauth.Engine and exposes an
// [http.Handler] for GET /metrics. Counters are named carauth_*_total; the
// single histogram is carauth_validate_latency_seconds. Nothing is
// registered in a global registry.
package prometheus
