// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestBytesTotal counts bytes fed into pipelines, by source type.
	IngestBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strix_ingest_bytes_total",
			Help: "Total number of stream bytes fed into pipelines",
		},
		[]string{"source"},
	)

	// FramesTotal counts deframed messages by outcome.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strix_frames_total",
			Help: "Total number of frames extracted from streams",
		},
		[]string{"source", "result"}, // result: parsed | invalid
	)

	// ParseErrorsTotal counts stream-fatal parse failures by reason.
	ParseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strix_parse_errors_total",
			Help: "Total number of stream parse failures",
		},
		[]string{"source", "reason"}, // reason: overflow | body_too_large | bad_header
	)

	// DeliveriesTotal counts sink deliveries by outcome.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strix_deliveries_total",
			Help: "Total number of messages handed to the sink",
		},
		[]string{"sink", "result"}, // result: ok | refused
	)

	// StreamsActive tracks currently open stream pipelines.
	StreamsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strix_streams_active",
			Help: "Number of stream pipelines currently open",
		},
		[]string{"source"},
	)

	// BufferedBytes reports bytes staged in a pipeline's receive ring
	// after its latest feed.
	BufferedBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strix_buffered_bytes",
			Help:    "Bytes staged in the receive ring after each feed",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10), // 1B to ~256KiB
		},
		[]string{"source"},
	)
)
