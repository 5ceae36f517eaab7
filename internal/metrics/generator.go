// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for eventgen and eventd.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay bounded: event types come from configuration, status is bucketed by class.

var (
	// EventsGeneratedTotal counts generated events by type.
	EventsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsim_events_generated_total",
		Help: "Total number of synthetic events generated, by event type.",
	}, []string{"type"})

	// SubmissionsTotal counts submissions by type and status class (2xx, 4xx, 5xx, transport_error).
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsim_submissions_total",
		Help: "Total number of event submissions, by event type and status class.",
	}, []string{"type", "status_class"})

	// SubmissionDuration observes the round-trip time of a single submission.
	SubmissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventsim_submission_duration_seconds",
		Help:    "Round-trip duration of a single event submission.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	// DaysCompletedTotal counts fully submitted days.
	DaysCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventsim_days_completed_total",
		Help: "Total number of simulated days whose events were all submitted.",
	})

	// RunsAbortedTotal counts runs aborted by a transport error or cancellation.
	RunsAbortedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsim_runs_aborted_total",
		Help: "Total number of generator runs aborted, by reason.",
	}, []string{"reason"})
)

// StatusClass buckets an HTTP status code. Zero means no response was received.
func StatusClass(status int) string {
	if status <= 0 {
		return "transport_error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// RecordGenerated adds n generated events for the type.
func RecordGenerated(eventType string, n int) {
	EventsGeneratedTotal.WithLabelValues(eventType).Add(float64(n))
}

// RecordSubmission records the outcome and latency of one submission.
func RecordSubmission(eventType string, status int, d time.Duration) {
	SubmissionsTotal.WithLabelValues(eventType, StatusClass(status)).Inc()
	SubmissionDuration.Observe(d.Seconds())
}

// RecordDayCompleted increments the completed day counter.
func RecordDayCompleted() {
	DaysCompletedTotal.Inc()
}

// RecordRunAborted increments the abort counter.
func RecordRunAborted(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	RunsAbortedTotal.WithLabelValues(reason).Inc()
}
