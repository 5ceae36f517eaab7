// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by the generator and the ingestion service.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	RunIDKey          = "eventsim.run_id"
	RunDaysKey        = "eventsim.days"
	RunDefinitionsKey = "eventsim.definitions"
	DayKey            = "eventsim.day"
	EventTypeKey      = "eventsim.event.type"
	EventValueKey     = "eventsim.event.value"
	EventEpochKey     = "eventsim.event.epoch_millis"
	EventCountKey     = "eventsim.event.count"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// RunAttributes describes a whole generator run.
func RunAttributes(runID string, days, definitions int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RunIDKey, runID),
		attribute.Int(RunDaysKey, days),
		attribute.Int(RunDefinitionsKey, definitions),
	}
}

// EventAttributes describes one generated event.
func EventAttributes(eventType, value string, epochMillis int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(EventTypeKey, eventType),
		attribute.String(EventValueKey, value),
		attribute.Int64(EventEpochKey, epochMillis),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
