// SPDX-License-Identifier: MIT

package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/novalabs/eventsim/internal/event"
)

// Key layout:
//
//	ev:<u16 type length><type><u64 epoch, sign flipped><u64 seq> -> JSON badgerRecord
//	ty:<type>                                                   -> empty
const (
	eventPrefix = "ev:"
	typePrefix  = "ty:"
	seqKey      = "seq:events"
)

type badgerRecord struct {
	UUID        string `json:"uuid"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	EpochMillis int64  `json:"epochMillis"`
}

// BadgerStore keeps events in an embedded Badger key-value store.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// OpenBadgerStore opens the store at path. An empty path keeps data in memory.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence([]byte(seqKey), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badger sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func typeKeyPrefix(eventType string) []byte {
	k := make([]byte, 0, len(eventPrefix)+2+len(eventType)+16)
	k = append(k, eventPrefix...)
	k = binary.BigEndian.AppendUint16(k, uint16(len(eventType)))
	return append(k, eventType...)
}

func epochKey(ms int64) uint64 {
	return uint64(ms) ^ (1 << 63)
}

func eventKey(eventType string, ms int64, seq uint64) []byte {
	k := typeKeyPrefix(eventType)
	k = binary.BigEndian.AppendUint64(k, epochKey(ms))
	return binary.BigEndian.AppendUint64(k, seq)
}

func (s *BadgerStore) Add(_ context.Context, e event.Stored) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	buf, err := json.Marshal(badgerRecord{
		UUID:        e.UUID.String(),
		Type:        e.Type,
		Value:       e.Value,
		EpochMillis: e.EpochMillis,
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(eventKey(e.Type, e.EpochMillis, n), buf); err != nil {
			return err
		}
		return txn.Set([]byte(typePrefix+e.Type), nil)
	})
}

func decodeRecord(item *badger.Item) (event.Stored, error) {
	var rec badgerRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return event.Stored{}, err
	}
	id, err := uuid.Parse(rec.UUID)
	if err != nil {
		return event.Stored{}, fmt.Errorf("parse uuid %q: %w", rec.UUID, err)
	}
	return event.Stored{
		UUID:  id,
		Event: event.Event{Type: rec.Type, Value: rec.Value, EpochMillis: rec.EpochMillis},
	}, nil
}

// scanNewest walks events of eventType from the newest at or below latest, stopping
// when fn returns false.
func (s *BadgerStore) scanNewest(txn *badger.Txn, eventType string, latest int64, fn func(ms int64, item *badger.Item) (bool, error)) error {
	prefix := typeKeyPrefix(eventType)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := eventKey(eventType, latest, ^uint64(0))
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.Key()
		ms := int64(binary.BigEndian.Uint64(key[len(prefix):len(prefix)+8]) ^ (1 << 63))
		more, err := fn(ms, item)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func (s *BadgerStore) Find(_ context.Context, eventType string, earliest, latest int64) ([]event.Stored, error) {
	if s.db.IsClosed() {
		return nil, ErrClosed
	}
	out := make([]event.Stored, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		return s.scanNewest(txn, eventType, latest, func(ms int64, item *badger.Item) (bool, error) {
			if ms < earliest {
				return false, nil
			}
			e, err := decodeRecord(item)
			if err != nil {
				return false, err
			}
			out = append(out, e)
			return true, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) Latest(_ context.Context, eventType string) (event.Stored, error) {
	if s.db.IsClosed() {
		return event.Stored{}, ErrClosed
	}
	var (
		out   event.Stored
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		return s.scanNewest(txn, eventType, MaxMillis, func(_ int64, item *badger.Item) (bool, error) {
			e, err := decodeRecord(item)
			if err != nil {
				return false, err
			}
			out, found = e, true
			return false, nil
		})
	})
	if err != nil {
		return event.Stored{}, fmt.Errorf("latest event: %w", err)
	}
	if !found {
		return event.Stored{}, ErrNotFound
	}
	return out, nil
}

func (s *BadgerStore) LatestPerType(ctx context.Context) ([]event.Stored, error) {
	types, err := s.Types(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]event.Stored, 0, len(types))
	for _, t := range types {
		e, err := s.Latest(ctx, t)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *BadgerStore) Count(_ context.Context, eventType string) (int64, error) {
	if s.db.IsClosed() {
		return 0, ErrClosed
	}
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = typeKeyPrefix(eventType)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *BadgerStore) Types(_ context.Context) ([]string, error) {
	if s.db.IsClosed() {
		return nil, ErrClosed
	}
	out := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(typePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, string(bytes.TrimPrefix(it.Item().Key(), []byte(typePrefix))))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (s *BadgerStore) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("release sequence: %w", err)
	}
	return s.db.Close()
}
