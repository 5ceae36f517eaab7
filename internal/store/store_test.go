// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalabs/eventsim/internal/event"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{name: "memory", open: func(t *testing.T) Store { return NewMemoryStore() }},
		{name: "sqlite", open: func(t *testing.T) Store {
			s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "events.db"))
			require.NoError(t, err)
			return s
		}},
		{name: "badger", open: func(t *testing.T) Store {
			s, err := OpenBadgerStore(filepath.Join(t.TempDir(), "badger"))
			require.NoError(t, err)
			return s
		}},
	}
}

func eachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func stored(typ, value string, ms int64) event.Stored {
	return event.Stored{UUID: uuid.New(), Event: event.Event{Type: typ, Value: value, EpochMillis: ms}}
}

func values(in []event.Stored) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		out = append(out, e.Value)
	}
	return out
}

func seed(t *testing.T, s Store, events ...event.Stored) {
	t.Helper()
	for _, e := range events {
		require.NoError(t, s.Add(context.Background(), e))
	}
}

func TestStore_FindNewestFirstInclusive(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seed(t, s,
			stored("front_door", "a", 100),
			stored("front_door", "c", 300),
			stored("front_door", "b", 200),
			stored("front_door", "d", 400),
			stored("shop_door", "x", 250),
		)

		got, err := s.Find(ctx, "front_door", 200, 300)
		require.NoError(t, err)
		if diff := cmp.Diff([]string{"c", "b"}, values(got)); diff != "" {
			t.Fatalf("Find mismatch (-want +got):\n%s", diff)
		}

		all, err := s.Find(ctx, "front_door", MinMillis, MaxMillis)
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "c", "b", "a"}, values(all))

		none, err := s.Find(ctx, "nothing", MinMillis, MaxMillis)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})
}

func TestStore_LatestAndTies(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Latest(ctx, "lathe")
		assert.ErrorIs(t, err, ErrNotFound)

		first := stored("lathe", "on", 500)
		second := stored("lathe", "off", 500)
		seed(t, s, stored("lathe", "on", 100), first, second)

		got, err := s.Latest(ctx, "lathe")
		require.NoError(t, err)
		assert.Equal(t, second.UUID, got.UUID, "ties resolve to the most recently added")
		assert.Equal(t, second.Event, got.Event)
	})
}

func TestStore_LatestPerTypeCountTypes(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		types, err := s.Types(ctx)
		require.NoError(t, err)
		assert.Empty(t, types)

		seed(t, s,
			stored("table_saw", "on", 10),
			stored("alarm", "enabled", 20),
			stored("table_saw", "off", 30),
			stored("mongo", "on", 5),
		)

		types, err = s.Types(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alarm", "mongo", "table_saw"}, types)

		latest, err := s.LatestPerType(ctx)
		require.NoError(t, err)
		require.Len(t, latest, 3)
		assert.Equal(t, "alarm", latest[0].Type)
		assert.Equal(t, "mongo", latest[1].Type)
		assert.Equal(t, "off", latest[2].Value)

		n, err := s.Count(ctx, "table_saw")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.Count(ctx, "unknown")
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, s.Ping(ctx))
	})
}

func TestStore_PrefixTypesDoNotOverlap(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seed(t, s, stored("door", "open", 1), stored("door_2", "closed", 2))

		n, err := s.Count(ctx, "door")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := s.Latest(ctx, "door")
		require.NoError(t, err)
		assert.Equal(t, "open", got.Value)
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.db")

	s, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	e := stored("novalabs_space", "open", 1484006400000)
	require.NoError(t, s.Add(ctx, e))
	require.NoError(t, s.Close())

	s, err = OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Latest(ctx, "novalabs_space")
	require.NoError(t, err)
	assert.Equal(t, e.UUID, got.UUID)
}

func TestBadgerStore_InMemoryAndClose(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBadgerStore("")
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, stored("alarm", "enabled", 1)))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
	assert.NoError(t, s.Close(), "double close is a no-op")
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "bolt", "")
	assert.Error(t, err)

	s, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}
