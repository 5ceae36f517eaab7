// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/novalabs/eventsim/internal/cache"
	"github.com/novalabs/eventsim/internal/event"
	xglog "github.com/novalabs/eventsim/internal/log"
	"github.com/novalabs/eventsim/internal/metrics"
)

// DefaultLatestTTL bounds how stale a cached latest event may be.
const DefaultLatestTTL = 5 * time.Second

// CachedStore serves Latest from a cache and drops the type's entry on Add.
type CachedStore struct {
	Store
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// WithLatestCache wraps s. A non-positive ttl uses DefaultLatestTTL.
func WithLatestCache(s Store, c cache.Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultLatestTTL
	}
	return &CachedStore{
		Store:  s,
		cache:  c,
		ttl:    ttl,
		logger: xglog.WithComponent("store.cache"),
	}
}

func latestKey(eventType string) string {
	return "latest:" + eventType
}

type cachedEvent struct {
	UUID        uuid.UUID `json:"uuid"`
	Type        string    `json:"type"`
	Value       string    `json:"value"`
	EpochMillis int64     `json:"epochMillis"`
}

func (s *CachedStore) Add(ctx context.Context, e event.Stored) error {
	if err := s.Store.Add(ctx, e); err != nil {
		return err
	}
	s.cache.Delete(ctx, latestKey(e.Type))
	return nil
}

func (s *CachedStore) Latest(ctx context.Context, eventType string) (event.Stored, error) {
	key := latestKey(eventType)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var ce cachedEvent
		if err := json.Unmarshal(raw, &ce); err == nil {
			metrics.RecordCacheLookup("hit")
			return event.Stored{
				UUID:  ce.UUID,
				Event: event.Event{Type: ce.Type, Value: ce.Value, EpochMillis: ce.EpochMillis},
			}, nil
		}
		metrics.RecordCacheLookup("error")
		s.logger.Warn().Str(xglog.FieldEventType, eventType).Msg("discarding undecodable cache entry")
		s.cache.Delete(ctx, key)
	} else {
		metrics.RecordCacheLookup("miss")
	}

	e, err := s.Store.Latest(ctx, eventType)
	if err != nil {
		return e, err
	}
	raw, err := json.Marshal(cachedEvent{UUID: e.UUID, Type: e.Type, Value: e.Value, EpochMillis: e.EpochMillis})
	if err == nil {
		s.cache.Set(ctx, key, raw, s.ttl)
	}
	return e, nil
}

// Close closes the cache and the underlying store.
func (s *CachedStore) Close() error {
	cerr := s.cache.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return cerr
}
