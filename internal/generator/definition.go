// SPDX-License-Identifier: MIT

package generator

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/novalabs/eventsim/internal/event"
)

// ErrInvalidDefinition classifies definitions the generator cannot run.
var ErrInvalidDefinition = errors.New("invalid event type definition")

// Definition is a named, cyclically-stateful source of state-change events.
//
// The state cursor starts at index 0 and is advanced before every emission, so the
// first value a definition ever produces is States[1 % len(States)]. The cursor is
// never reset between days.
type Definition struct {
	Name          string
	States        []string
	ChangesPerDay int

	cursor int
}

// NewDefinition builds and validates a definition with its cursor at index 0.
func NewDefinition(name string, states []string, changesPerDay int) (*Definition, error) {
	d := &Definition{
		Name:          name,
		States:        append([]string(nil), states...),
		ChangesPerDay: changesPerDay,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate reports whether the definition can be generated from.
func (d *Definition) Validate() error {
	if n := utf8.RuneCountInString(d.Name); n < event.MinTypeLength || n > event.MaxTypeLength {
		return fmt.Errorf("%w: name %q must be between %d and %d characters",
			ErrInvalidDefinition, d.Name, event.MinTypeLength, event.MaxTypeLength)
	}
	if len(d.States) == 0 {
		return fmt.Errorf("%w: %s: at least one state is required", ErrInvalidDefinition, d.Name)
	}
	for i, s := range d.States {
		if n := utf8.RuneCountInString(s); n < event.MinValueLength || n > event.MaxValueLength {
			return fmt.Errorf("%w: %s: state %d must be between %d and %d characters",
				ErrInvalidDefinition, d.Name, i, event.MinValueLength, event.MaxValueLength)
		}
	}
	if d.ChangesPerDay < 1 || d.ChangesPerDay > MillisPerDay {
		return fmt.Errorf("%w: %s: changes per day must be between 1 and %d",
			ErrInvalidDefinition, d.Name, MillisPerDay)
	}
	return nil
}

// Current returns the state the cursor points at.
func (d *Definition) Current() string {
	return d.States[d.cursor]
}

// advance moves the cursor one step, wrapping to 0, and returns the new state.
func (d *Definition) advance() string {
	d.cursor++
	if d.cursor >= len(d.States) {
		d.cursor = 0
	}
	return d.States[d.cursor]
}
