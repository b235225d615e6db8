// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the visto image search service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// SearchBuckets covers full-corpus scan latencies, from sub-millisecond
// (small in-memory corpus) to tens of seconds (large corpus over the wire).
var SearchBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}

// EncodeBuckets covers round-trips to the external vision encoder.
var EncodeBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

var (
	// RequestsTotal counts HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visto_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visto_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: SearchBuckets,
		},
		[]string{"method"},
	)

	// SearchesTotal counts similarity searches by outcome.
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visto_searches_total",
			Help: "Similarity searches",
		},
		[]string{"status"},
	)

	// SearchDuration records full-scan search duration in seconds.
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visto_search_duration_seconds",
			Help:    "Similarity search duration",
			Buckets: SearchBuckets,
		},
	)

	// EncodeDuration records encoder round-trip latency in seconds.
	EncodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visto_encode_duration_seconds",
			Help:    "Image encoder latency",
			Buckets: EncodeBuckets,
		},
		[]string{"status"},
	)

	// IngestFilesTotal counts ingested files by outcome
	// (inserted, duplicate, failed).
	IngestFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visto_ingest_files_total",
			Help: "Ingested files",
		},
		[]string{"result"},
	)

	// AuthRejectedTotal counts rejected requests by reason
	// (unauthenticated, rate_limited).
	AuthRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visto_auth_rejected_total",
			Help: "Rejected requests",
		},
		[]string{"reason"},
	)

	// CorpusRecords tracks the number of embedding records in the store,
	// updated after each ingestion run.
	CorpusRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "visto_corpus_records",
			Help: "Embedding records in the store",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		SearchesTotal,
		SearchDuration,
		EncodeDuration,
		IngestFilesTotal,
		AuthRejectedTotal,
		CorpusRecords,
	)
}
