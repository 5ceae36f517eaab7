// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/novalabs/eventsim/internal/event"
	"github.com/novalabs/eventsim/internal/persistence/sqlite"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid         TEXT    NOT NULL UNIQUE,
		type         TEXT    NOT NULL,
		value        TEXT    NOT NULL,
		epoch_millis INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_type_epoch ON events(type, epoch_millis, seq);`,
}

// SQLiteStore persists events in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path. An existing file must pass
// a quick integrity check before it is used.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store requires a path")
	}
	if _, err := os.Stat(path); err == nil {
		issues, err := sqlite.VerifyIntegrity(path, "quick")
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", path, err)
		}
		if len(issues) > 0 {
			return nil, fmt.Errorf("database %s failed integrity check: %s", path, strings.Join(issues, "; "))
		}
	}

	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, e event.Stored) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (uuid, type, value, epoch_millis) VALUES (?, ?, ?, ?)`,
		e.UUID.String(), e.Type, e.Value, e.EpochMillis)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Find(ctx context.Context, eventType string, earliest, latest int64) ([]event.Stored, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, type, value, epoch_millis FROM events
		 WHERE type = ? AND epoch_millis >= ? AND epoch_millis <= ?
		 ORDER BY epoch_millis DESC, seq DESC`,
		eventType, earliest, latest)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

func (s *SQLiteStore) Latest(ctx context.Context, eventType string) (event.Stored, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT uuid, type, value, epoch_millis FROM events
		 WHERE type = ? ORDER BY epoch_millis DESC, seq DESC LIMIT 1`, eventType)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Stored{}, ErrNotFound
	}
	if err != nil {
		return event.Stored{}, fmt.Errorf("query latest event: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) LatestPerType(ctx context.Context) ([]event.Stored, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.uuid, e.type, e.value, e.epoch_millis FROM events e
		 WHERE e.seq = (
			SELECT i.seq FROM events i WHERE i.type = e.type
			ORDER BY i.epoch_millis DESC, i.seq DESC LIMIT 1
		 )
		 ORDER BY e.type`)
	if err != nil {
		return nil, fmt.Errorf("query latest per type: %w", err)
	}
	return scanEvents(rows)
}

func (s *SQLiteStore) Count(ctx context.Context, eventType string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE type = ?`, eventType).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Types(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT type FROM events ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("query types: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (event.Stored, error) {
	var (
		e  event.Stored
		id string
	)
	if err := sc.Scan(&id, &e.Type, &e.Value, &e.EpochMillis); err != nil {
		return event.Stored{}, err
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return event.Stored{}, fmt.Errorf("parse uuid %q: %w", id, err)
	}
	e.UUID = u
	return e, nil
}

func scanEvents(rows *sql.Rows) ([]event.Stored, error) {
	defer func() { _ = rows.Close() }()

	out := make([]event.Stored, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
