package observability

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// MetricsManager owns the process-level gauges published alongside the hub
// counters: goroutine count and memory usage, sampled on demand or by a
// ticker.
type MetricsManager struct {
	meter metric.Meter

	goGoroutines         metric.Int64Gauge
	goMemstatsAllocBytes metric.Int64Gauge
	processMemoryBytes   metric.Int64Gauge
	gcPauseSeconds       metric.Float64Histogram

	lastPauseTotal uint64
}

func NewMetricsManager(meter metric.Meter) (*MetricsManager, error) {
	mm := &MetricsManager{meter: meter}

	var err error
	mm.goGoroutines, err = meter.Int64Gauge(
		"go_goroutines",
		metric.WithDescription("Number of goroutines that currently exist"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	mm.goMemstatsAllocBytes, err = meter.Int64Gauge(
		"go_memstats_alloc_bytes",
		metric.WithDescription("Number of bytes allocated and still in use"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	mm.processMemoryBytes, err = meter.Int64Gauge(
		"process_memory_bytes",
		metric.WithDescription("Total bytes of memory obtained from the OS"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	mm.gcPauseSeconds, err = meter.Float64Histogram(
		"go_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause time accumulated between samples"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return mm, nil
}

// UpdateSystemMetrics samples the runtime and records the gauges.
func (mm *MetricsManager) UpdateSystemMetrics(ctx context.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.goGoroutines.Record(ctx, int64(runtime.NumGoroutine()))
	mm.goMemstatsAllocBytes.Record(ctx, int64(m.Alloc))
	mm.processMemoryBytes.Record(ctx, int64(m.Sys))

	if m.PauseTotalNs > mm.lastPauseTotal {
		delta := m.PauseTotalNs - mm.lastPauseTotal
		mm.gcPauseSeconds.Record(ctx, time.Duration(delta).Seconds())
	}
	mm.lastPauseTotal = m.PauseTotalNs
}

// StartTicker samples the system metrics on the interval until ctx is
// cancelled.
func (mm *MetricsManager) StartTicker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				mm.UpdateSystemMetrics(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
