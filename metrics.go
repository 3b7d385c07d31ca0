package bloomgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    addCounter    prometheus.Counter
//	    lookupCounter *prometheus.CounterVec
//	}
//
//	func (p *PrometheusCollector) RecordAdd() {
//	    p.addCounter.Inc()
//	    // ... record per-filter labels, etc.
//	}
type MetricsCollector interface {
	// RecordAdd is called after each add operation.
	RecordAdd()

	// RecordLookup is called after each lookup operation.
	// hit reports whether the filter claimed membership.
	RecordLookup(hit bool)

	// RecordRemove is called after each remove operation.
	// removed reports whether the element was actually removed.
	RecordRemove(removed bool)

	// RecordSweep is called after each expiry sweep.
	// reaped is the number of slots cleared, duration is the time taken.
	RecordSweep(reaped uint64, duration time.Duration)

	// RecordSave is called after each serialization.
	// bytes is the number of bytes written, err is nil if successful.
	RecordSave(bytes int64, duration time.Duration, err error)

	// RecordLoad is called after each deserialization.
	// bytes is the size of the filter buffer, err is nil if successful.
	RecordLoad(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd()                             {}
func (NoopMetricsCollector) RecordLookup(bool)                      {}
func (NoopMetricsCollector) RecordRemove(bool)                      {}
func (NoopMetricsCollector) RecordSweep(uint64, time.Duration)      {}
func (NoopMetricsCollector) RecordSave(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordLoad(int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount        atomic.Int64
	LookupCount     atomic.Int64
	LookupHits      atomic.Int64
	RemoveCount     atomic.Int64
	RemoveMisses    atomic.Int64
	SweepCount      atomic.Int64
	SweepReaped     atomic.Int64
	SweepTotalNanos atomic.Int64
	SaveCount       atomic.Int64
	SaveErrors      atomic.Int64
	SaveBytes       atomic.Int64
	LoadCount       atomic.Int64
	LoadErrors      atomic.Int64
	LoadBytes       atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd() {
	b.AddCount.Add(1)
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(hit bool) {
	b.LookupCount.Add(1)
	if hit {
		b.LookupHits.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(removed bool) {
	b.RemoveCount.Add(1)
	if !removed {
		b.RemoveMisses.Add(1)
	}
}

// RecordSweep implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSweep(reaped uint64, duration time.Duration) {
	b.SweepCount.Add(1)
	b.SweepReaped.Add(int64(reaped))
	b.SweepTotalNanos.Add(duration.Nanoseconds())
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(bytes int64, duration time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveBytes.Add(bytes)
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(bytes int64, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadBytes.Add(bytes)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:      b.AddCount.Load(),
		LookupCount:   b.LookupCount.Load(),
		LookupHits:    b.LookupHits.Load(),
		RemoveCount:   b.RemoveCount.Load(),
		RemoveMisses:  b.RemoveMisses.Load(),
		SweepCount:    b.SweepCount.Load(),
		SweepReaped:   b.SweepReaped.Load(),
		SweepAvgNanos: b.getAvgSweepNanos(),
		SaveCount:     b.SaveCount.Load(),
		SaveErrors:    b.SaveErrors.Load(),
		SaveBytes:     b.SaveBytes.Load(),
		LoadCount:     b.LoadCount.Load(),
		LoadErrors:    b.LoadErrors.Load(),
		LoadBytes:     b.LoadBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgSweepNanos() int64 {
	count := b.SweepCount.Load()
	if count == 0 {
		return 0
	}
	return b.SweepTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount      int64
	LookupCount   int64
	LookupHits    int64
	RemoveCount   int64
	RemoveMisses  int64
	SweepCount    int64
	SweepReaped   int64
	SweepAvgNanos int64
	SaveCount     int64
	SaveErrors    int64
	SaveBytes     int64
	LoadCount     int64
	LoadErrors    int64
	LoadBytes     int64
}
