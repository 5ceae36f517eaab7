// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldEventID   = "event_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Domain fields
	FieldEventType   = "event_type"
	FieldValue       = "value"
	FieldEpochMillis = "epoch_millis"
	FieldDay         = "day"
	FieldStatus      = "status"
	FieldPayload     = "payload"

	// Path / URL fields
	FieldPath     = "path"
	FieldEndpoint = "endpoint"
)
