// Package prometheus renders coordinator metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [flybeth.Coordinator] and exposes an
// [http.Handler] serving all counters and histograms. Counter names are
// prefixed flybeth_*_total; the single histogram is
// flybeth_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount
//     the Handler.
//   - Mutate coordinator state.
package prometheus
