// Package metrics provides Prometheus instrumentation for the capture
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the capture service.
type Metrics struct {
	// Queue metrics
	ChunksAppended prometheus.Counter
	BytesAppended  prometheus.Counter
	BytesEvicted   prometheus.Counter
	BufferedBytes  prometheus.Gauge

	// Scheduler metrics
	TicksTotal         prometheus.Counter
	SegmentsExtracted  prometheus.Counter
	StarvationSegments prometheus.Counter
	SegmentBytes       prometheus.Histogram
	EncodeFailures     prometheus.Counter
	SubstituteSegments prometheus.Counter

	// Dispatcher metrics
	EventsDispatched prometheus.Counter
	EventsSuppressed prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_chunks_appended_total",
			Help: "Total number of audio chunks appended to the queue",
		}),
		BytesAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_bytes_appended_total",
			Help: "Total number of audio bytes appended to the queue",
		}),
		BytesEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_bytes_evicted_total",
			Help: "Total number of buffered bytes dropped by the capacity bound",
		}),
		BufferedBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "capture_buffered_bytes",
			Help: "Current number of buffered audio bytes in the queue",
		}),
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_scheduler_ticks_total",
			Help: "Total number of scheduler ticks fired",
		}),
		SegmentsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_segments_extracted_total",
			Help: "Total number of segments extracted from the queue",
		}),
		StarvationSegments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_starvation_segments_total",
			Help: "Total number of segments shorter than the configured target",
		}),
		SegmentBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_segment_bytes",
			Help:    "Size distribution of extracted segments in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		EncodeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_encode_failures_total",
			Help: "Total number of per-tick encode failures",
		}),
		SubstituteSegments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_substitute_segments_total",
			Help: "Total number of ticks degraded to a substitute tone segment",
		}),
		EventsDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_events_dispatched_total",
			Help: "Total number of data events delivered to the observer",
		}),
		EventsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_events_suppressed_total",
			Help: "Total number of data events recorded but not delivered because the source was not running",
		}),
	}
}
