package internaldefs

import (
	flybeth "github.com/ibraheemosule/flybeth-sub002"
)

// CounterDef binds a coordinator counter to its stable exported name.
type CounterDef struct {
	ID   flybeth.MetricID
	Name string
	Help string
}

// HistogramDef binds a coordinator histogram to its stable exported name.
type HistogramDef struct {
	ID   flybeth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter, in snapshot order.
var CounterDefs = []CounterDef{
	{ID: flybeth.MetricRefreshSuccess, Name: "flybeth_refresh_success_total", Help: "Refreshes that installed a credential pair."},
	{ID: flybeth.MetricRefreshFailure, Name: "flybeth_refresh_failure_total", Help: "Refreshes rejected or failed by the endpoint."},
	{ID: flybeth.MetricRefreshNoToken, Name: "flybeth_refresh_no_token_total", Help: "Refresh attempts without a stored refresh token."},
	{ID: flybeth.MetricRefreshCoalesced, Name: "flybeth_refresh_coalesced_total", Help: "Callers served by another caller's in-flight refresh."},
	{ID: flybeth.MetricPairInstalled, Name: "flybeth_pair_installed_total", Help: "Credential pair installs."},
	{ID: flybeth.MetricLogout, Name: "flybeth_logout_total", Help: "Caller-initiated logouts."},
	{ID: flybeth.MetricForcedLogout, Name: "flybeth_forced_logout_total", Help: "Monitor-forced logouts of lapsed sessions."},
	{ID: flybeth.MetricMonitorTick, Name: "flybeth_monitor_tick_total", Help: "Monitor expiry checks."},
	{ID: flybeth.MetricProactiveRefresh, Name: "flybeth_proactive_refresh_total", Help: "Refreshes triggered by the monitor."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: flybeth.MetricRefreshLatency, Name: "flybeth_refresh_latency_seconds", Help: "Refresh round-trip latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// coordinator's internal millisecond buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix holds metric-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// Prometheus-style exports require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
