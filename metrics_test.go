package flybeth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricRefreshSuccess)
	if m.Value(MetricRefreshSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricRefreshSuccess)
	m.Inc(MetricRefreshSuccess)
	m.Inc(MetricLogout)

	if got := m.Value(MetricRefreshSuccess); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricLogout); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestMetricsNilReceiverSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricRefreshSuccess)
	m.Observe(MetricRefreshLatency, time.Millisecond)
	if m.Value(MetricRefreshSuccess) != 0 {
		t.Fatal("nil metrics must read as zero")
	}
	snapshot := m.Snapshot()
	if len(snapshot.Counters) != 0 {
		t.Fatal("nil metrics snapshot must be empty")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricMonitorTick)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricMonitorTick); got != workers*perWorker {
		t.Fatalf("expected %d, got %d", workers*perWorker, got)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	cases := []struct {
		d      time.Duration
		bucket int
	}{
		{10 * time.Millisecond, 0},
		{25 * time.Millisecond, 0},
		{40 * time.Millisecond, 1},
		{90 * time.Millisecond, 2},
		{200 * time.Millisecond, 3},
		{400 * time.Millisecond, 4},
		{900 * time.Millisecond, 5},
		{2 * time.Second, 6},
		{10 * time.Second, 7},
	}

	for _, tc := range cases {
		m.Observe(MetricRefreshLatency, tc.d)
	}

	buckets := m.Snapshot().Histograms[MetricRefreshLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}

	want := make([]uint64, histBucketCount)
	for _, tc := range cases {
		want[tc.bucket]++
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d: expected %d, got %d", i, want[i], buckets[i])
		}
	}
}

func TestMetricsObserveRequiresLatencyFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricRefreshLatency, time.Millisecond)
	if hist := m.Snapshot().Histograms[MetricRefreshLatency]; len(hist) != 0 {
		t.Fatal("histogram must stay empty without the latency flag")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricRefreshSuccess)
	m.Inc(MetricPairInstalled)

	s := m.Snapshot()
	if s.Counters[MetricRefreshSuccess] != 1 || s.Counters[MetricPairInstalled] != 1 {
		t.Fatalf("unexpected snapshot: %+v", s.Counters)
	}

	// The snapshot is a copy; later increments must not leak into it.
	m.Inc(MetricRefreshSuccess)
	if s.Counters[MetricRefreshSuccess] != 1 {
		t.Fatal("snapshot mutated after the fact")
	}
}
