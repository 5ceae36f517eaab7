// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsStoredTotal counts events accepted by the ingestion API.
	EventsStoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventd_events_stored_total",
		Help: "Total number of events stored, by event type.",
	}, []string{"type"})

	// EventsRejectedTotal counts rejected ingestion requests by reason.
	EventsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventd_events_rejected_total",
		Help: "Total number of rejected event submissions, by reason.",
	}, []string{"reason"})

	// CacheLookupsTotal counts latest-event cache lookups by result (hit, miss, error).
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventd_cache_lookups_total",
		Help: "Total number of latest-event cache lookups, by result.",
	}, []string{"result"})

	// HTTPRequestsTotal counts HTTP requests by route pattern, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventd_http_requests_total",
		Help: "Total number of HTTP requests, by route, method and status code.",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration observes handler latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventd_http_request_duration_seconds",
		Help:    "HTTP request latency, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// RecordStored increments the stored counter for the type.
func RecordStored(eventType string) {
	EventsStoredTotal.WithLabelValues(eventType).Inc()
}

// RecordRejected increments the rejection counter.
func RecordRejected(reason string) {
	EventsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordCacheLookup increments the cache lookup counter.
func RecordCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}
