package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RemoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_remote_requests_total", Help: "Explorer page requests by outcome"},
		[]string{"category", "outcome"},
	)
	PagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_pages_fetched_total", Help: "Explorer pages appended by the paginator"},
		[]string{"category"},
	)
	RecordsUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_records_upserted_total", Help: "Records written to the store"},
		[]string{"category"},
	)
	RecordsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_records_rejected_total", Help: "Explorer records that failed mapping"},
		[]string{"category"},
	)
	CrawlDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "indexer_crawl_duration_seconds", Help: "Full crawl latency per category", Buckets: prometheus.ExponentialBuckets(0.5, 2, 10)},
		[]string{"category", "status"},
	)
	SchedulerTicks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "indexer_scheduler_ticks_total", Help: "Completed scheduler ticks"},
	)
	SchedulerFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "indexer_scheduler_address_failures_total", Help: "Scheduled address crawls that returned an error"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "Request latency", Buckets: prometheus.DefBuckets},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		RemoteRequests, PagesFetched, RecordsUpserted, RecordsRejected, CrawlDuration,
		SchedulerTicks, SchedulerFailures, HTTPRequests, HTTPRequestDuration,
	)
}

func StatusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
