package resdb

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
//	    addFileCounter  prometheus.Counter
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordAddFile(objects int, duration time.Duration, err error) {
//	    p.addFileCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordAddFile is called after each file load attempt.
	// objects is the number of object groups indexed, duration is the
	// total time taken, err is nil if successful.
	RecordAddFile(objects int, duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// matches is the number of entries returned, duration is the time taken.
	RecordSearch(matches int, duration time.Duration)

	// RecordMaterialize is called after each payload materialization.
	// bytes is the payload size read, err is nil if successful.
	RecordMaterialize(bytes int, duration time.Duration, err error)

	// RecordRelease is called after each memory release.
	// blocks is the number of payload blocks dropped.
	RecordRelease(blocks int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAddFile(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration)             {}
func (NoopMetricsCollector) RecordMaterialize(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordRelease(int)                           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddFileCount          atomic.Int64
	AddFileErrors         atomic.Int64
	AddFileObjects        atomic.Int64
	AddFileTotalNanos     atomic.Int64
	SearchCount           atomic.Int64
	SearchMatches         atomic.Int64
	SearchTotalNanos      atomic.Int64
	MaterializeCount      atomic.Int64
	MaterializeErrors     atomic.Int64
	MaterializeBytes      atomic.Int64
	MaterializeTotalNanos atomic.Int64
	ReleaseCount          atomic.Int64
	ReleaseBlocks         atomic.Int64
}

// RecordAddFile implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAddFile(objects int, duration time.Duration, err error) {
	b.AddFileCount.Add(1)
	b.AddFileTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddFileErrors.Add(1)
		return
	}
	b.AddFileObjects.Add(int64(objects))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(matches int, duration time.Duration) {
	b.SearchCount.Add(1)
	b.SearchMatches.Add(int64(matches))
	b.SearchTotalNanos.Add(duration.Nanoseconds())
}

// RecordMaterialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMaterialize(bytes int, duration time.Duration, err error) {
	b.MaterializeCount.Add(1)
	b.MaterializeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MaterializeErrors.Add(1)
		return
	}
	b.MaterializeBytes.Add(int64(bytes))
}

// RecordRelease implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRelease(blocks int) {
	b.ReleaseCount.Add(1)
	b.ReleaseBlocks.Add(int64(blocks))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddFileCount:      b.AddFileCount.Load(),
		AddFileErrors:     b.AddFileErrors.Load(),
		AddFileObjects:    b.AddFileObjects.Load(),
		AddFileAvgNanos:   b.getAvgAddFileNanos(),
		SearchCount:       b.SearchCount.Load(),
		SearchMatches:     b.SearchMatches.Load(),
		SearchAvgNanos:    b.getAvgSearchNanos(),
		MaterializeCount:  b.MaterializeCount.Load(),
		MaterializeErrors: b.MaterializeErrors.Load(),
		MaterializeBytes:  b.MaterializeBytes.Load(),
		ReleaseCount:      b.ReleaseCount.Load(),
		ReleaseBlocks:     b.ReleaseBlocks.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgAddFileNanos() int64 {
	count := b.AddFileCount.Load()
	if count == 0 {
		return 0
	}
	return b.AddFileTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddFileCount      int64
	AddFileErrors     int64
	AddFileObjects    int64
	AddFileAvgNanos   int64
	SearchCount       int64
	SearchMatches     int64
	SearchAvgNanos    int64
	MaterializeCount  int64
	MaterializeErrors int64
	MaterializeBytes  int64
	ReleaseCount      int64
	ReleaseBlocks     int64
}
