// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/novalabs/eventsim/internal/event"
)

type memoryRecord struct {
	seq uint64
	ev  event.Stored
}

// MemoryStore keeps events in process memory, sorted ascending per type.
type MemoryStore struct {
	mu     sync.RWMutex
	seq    uint64
	byType map[string][]memoryRecord
	closed bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byType: make(map[string][]memoryRecord)}
}

func less(a, b memoryRecord) bool {
	if a.ev.EpochMillis != b.ev.EpochMillis {
		return a.ev.EpochMillis < b.ev.EpochMillis
	}
	return a.seq < b.seq
}

func (s *MemoryStore) Add(_ context.Context, e event.Stored) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.seq++
	rec := memoryRecord{seq: s.seq, ev: e}
	recs := s.byType[e.Type]
	i := sort.Search(len(recs), func(i int) bool { return less(rec, recs[i]) })
	s.byType[e.Type] = slices.Insert(recs, i, rec)
	return nil
}

func (s *MemoryStore) Find(_ context.Context, eventType string, earliest, latest int64) ([]event.Stored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	recs := s.byType[eventType]
	out := make([]event.Stored, 0)
	for i := len(recs) - 1; i >= 0; i-- {
		ms := recs[i].ev.EpochMillis
		if ms > latest {
			continue
		}
		if ms < earliest {
			break
		}
		out = append(out, recs[i].ev)
	}
	return out, nil
}

func (s *MemoryStore) Latest(_ context.Context, eventType string) (event.Stored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return event.Stored{}, ErrClosed
	}

	recs := s.byType[eventType]
	if len(recs) == 0 {
		return event.Stored{}, ErrNotFound
	}
	return recs[len(recs)-1].ev, nil
}

func (s *MemoryStore) LatestPerType(_ context.Context) ([]event.Stored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make([]event.Stored, 0, len(s.byType))
	for _, name := range s.typesLocked() {
		recs := s.byType[name]
		out = append(out, recs[len(recs)-1].ev)
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context, eventType string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return int64(len(s.byType[eventType])), nil
}

func (s *MemoryStore) Types(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.typesLocked(), nil
}

func (s *MemoryStore) typesLocked() []string {
	names := make([]string, 0, len(s.byType))
	for name := range s.byType {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
