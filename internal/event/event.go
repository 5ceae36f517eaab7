// SPDX-License-Identifier: MIT

// Package event holds the state-change event record shared by the generator and the
// ingestion service.
package event

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MinTypeLength  = 1
	MaxTypeLength  = 100
	MinValueLength = 1
	MaxValueLength = 255

	// TimeLayout is the UTC rendering used for the "time" field of stored events.
	TimeLayout = "2006-01-02T15:04:05.000-0700"
)

// ErrInvalidEvent classifies events that fail field validation.
var ErrInvalidEvent = errors.New("invalid event")

// Event is the wire record POSTed to the ingestion endpoint.
// The JSON shape is exactly {"type","value","epochMillis"}.
type Event struct {
	Type        string `json:"type"`
	Value       string `json:"value"`
	EpochMillis int64  `json:"epochMillis"`
}

// Time returns the event instant in UTC.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.EpochMillis).UTC()
}

// Validate checks the field bounds enforced by the ingestion service.
func (e Event) Validate() error {
	if n := utf8.RuneCountInString(e.Type); n < MinTypeLength || n > MaxTypeLength {
		return fmt.Errorf("%w: type must be between %d and %d characters", ErrInvalidEvent, MinTypeLength, MaxTypeLength)
	}
	if n := utf8.RuneCountInString(e.Value); n < MinValueLength || n > MaxValueLength {
		return fmt.Errorf("%w: value must be between %d and %d characters", ErrInvalidEvent, MinValueLength, MaxValueLength)
	}
	if e.EpochMillis < 0 {
		return fmt.Errorf("%w: epochMillis must not be negative", ErrInvalidEvent)
	}
	return nil
}

func (e Event) String() string {
	return fmt.Sprintf("type '%s', value '%s', epochMillis '%s'", e.Type, e.Value, e.Time().Format(TimeLayout))
}

// Stored is an accepted event with its server-assigned identity.
type Stored struct {
	UUID uuid.UUID
	Event
}

// NewStored assigns a fresh random UUID to e.
func NewStored(e Event) Stored {
	return Stored{UUID: uuid.New(), Event: e}
}

// View is the JSON representation returned by the query endpoints.
type View struct {
	UUID        string `json:"uuid"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	EpochMillis int64  `json:"epochMillis"`
	Time        string `json:"time"`
}

// View renders s for API responses.
func (s Stored) View() View {
	return View{
		UUID:        s.UUID.String(),
		Type:        s.Type,
		Value:       s.Value,
		EpochMillis: s.EpochMillis,
		Time:        s.Time().Format(TimeLayout),
	}
}

// Views renders a slice of stored events, never returning nil.
func Views(in []Stored) []View {
	out := make([]View, 0, len(in))
	for _, s := range in {
		out = append(out, s.View())
	}
	return out
}

// Count is the response body of the count endpoint.
type Count struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}
