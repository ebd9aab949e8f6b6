// Package metrics provides Prometheus counters for the extraction run.
// Metrics are observational only and must never alter sync control flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsEmitted tracks records written to the sink per stream.
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formtap_records_emitted_total",
			Help: "Total number of records emitted per stream",
		},
		[]string{"stream"},
	)

	// HTTPRequests tracks upstream API calls by outcome.
	// Labels: endpoint (path template), status (success/retryable/fatal)
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formtap_http_requests_total",
			Help: "Total number of upstream API requests by outcome",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRetries tracks retry attempts by retry class.
	HTTPRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formtap_http_retries_total",
			Help: "Total number of retried requests by retry class",
		},
		[]string{"class"},
	)

	// BookmarksWritten tracks persisted watermark updates per stream.
	BookmarksWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formtap_bookmarks_written_total",
			Help: "Total number of bookmark writes per stream",
		},
		[]string{"stream"},
	)
)
