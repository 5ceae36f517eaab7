// SPDX-License-Identifier: MIT

// Package generator produces synthetic, time-ordered state-change events for a
// simulated UTC calendar day.
package generator

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/novalabs/eventsim/internal/event"
)

// MillisPerDay is the size of the offset range [0, MillisPerDay) within one UTC day.
const MillisPerDay = 86_400_000

// Generator draws random timestamps and advances definition cursors.
// It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// New returns a Generator drawing from rng. A nil rng uses an unseeded PCG source.
func New(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng}
}

// NewSeeded returns a Generator whose output is reproducible for a given seed.
func NewSeeded(seed uint64) *Generator {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Midnight returns 00:00:00 UTC of the calendar day containing t.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GenerateDay emits def.ChangesPerDay events on distinct, strictly increasing
// timestamps inside the UTC day of day. Values continue the definition's cycle from
// wherever the previous call left it.
func (g *Generator) GenerateDay(def *Definition, day time.Time) []event.Event {
	midnight := Midnight(day).UnixMilli()
	offsets := g.offsets(def.ChangesPerDay)

	events := make([]event.Event, 0, len(offsets))
	for _, off := range offsets {
		events = append(events, event.Event{
			Type:        def.Name,
			Value:       def.advance(),
			EpochMillis: midnight + off,
		})
	}
	return events
}

// offsets returns n distinct offsets in [0, MillisPerDay), sorted ascending.
func (g *Generator) offsets(n int) []int64 {
	var seen map[int64]struct{}
	if n > MillisPerDay/2 {
		seen = g.floyd(n)
	} else {
		seen = g.reject(n)
	}

	out := make([]int64, 0, len(seen))
	for off := range seen {
		out = append(out, off)
	}
	slices.Sort(out)
	return out
}

// reject draws uniformly and discards repeats until n distinct values are collected.
func (g *Generator) reject(n int) map[int64]struct{} {
	seen := make(map[int64]struct{}, n)
	for len(seen) < n {
		seen[g.rng.Int64N(MillisPerDay)] = struct{}{}
	}
	return seen
}

// floyd is Floyd's subset sampling: exactly n draws for a uniform n-subset.
func (g *Generator) floyd(n int) map[int64]struct{} {
	seen := make(map[int64]struct{}, n)
	for j := int64(MillisPerDay - n); j < MillisPerDay; j++ {
		t := g.rng.Int64N(j + 1)
		if _, dup := seen[t]; dup {
			seen[j] = struct{}{}
			continue
		}
		seen[t] = struct{}{}
	}
	return seen
}
