// SPDX-License-Identifier: MIT

// Package store persists accepted events and answers the ingestion API's queries.
//
// Every backend orders events of one type by epochMillis, breaking ties by insertion
// order, so "newest first" and "latest" agree across backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/novalabs/eventsim/internal/event"
	xglog "github.com/novalabs/eventsim/internal/log"
)

// ErrNotFound is returned by Latest when no event of the type exists.
var ErrNotFound = errors.New("event not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Bounds for open-ended Find ranges.
const (
	MinMillis int64 = math.MinInt64
	MaxMillis int64 = math.MaxInt64
)

// Store is the event persistence contract.
type Store interface {
	// Add persists an accepted event.
	Add(ctx context.Context, e event.Stored) error
	// Find returns events of eventType with earliest <= epochMillis <= latest, newest first.
	Find(ctx context.Context, eventType string, earliest, latest int64) ([]event.Stored, error)
	// Latest returns the newest event of eventType or ErrNotFound.
	Latest(ctx context.Context, eventType string) (event.Stored, error)
	// LatestPerType returns the newest event of every type, ordered by type.
	LatestPerType(ctx context.Context) ([]event.Stored, error)
	// Count returns the number of events of eventType.
	Count(ctx context.Context, eventType string) (int64, error)
	// Types returns all known type names in ascending order.
	Types(ctx context.Context) ([]string, error)
	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error
	Close() error
}

// Open creates a Store for the named backend. Path is ignored by the memory backend.
func Open(ctx context.Context, backend, path string) (Store, error) {
	logger := xglog.WithComponent("store")

	var (
		s   Store
		err error
	)
	switch backend {
	case "memory", "":
		s = NewMemoryStore()
	case "sqlite":
		s, err = OpenSQLiteStore(ctx, path)
	case "badger":
		s, err = OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "store.opened").
		Str("backend", backend).
		Str(xglog.FieldPath, path).
		Msg("event store opened")
	return s, nil
}
