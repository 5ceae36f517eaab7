// SPDX-License-Identifier: MIT

package sqlite

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyIntegrity_DetectsCorruption(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corruptible.sqlite")

	db, err := Open(dbPath, DefaultConfig())
	require.NoError(t, err)

	_, err = db.Exec("CREATE TABLE events (id INTEGER PRIMARY KEY, data TEXT);")
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, err = db.Exec("INSERT INTO events (data) VALUES (?);", strings.Repeat("A", 200))
		require.NoError(t, err)
	}
	_, err = db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	issues, err := VerifyIntegrity(dbPath, "quick")
	require.NoError(t, err)
	require.Nil(t, issues)

	f, err := os.OpenFile(dbPath, os.O_RDWR, 0o644)
	require.NoError(t, err)
	junk := make([]byte, 100)
	_, _ = rand.Read(junk)
	_, err = f.WriteAt(junk, 4096)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	issues, err = VerifyIntegrity(dbPath, "full")
	if err == nil {
		assert.NotEmpty(t, issues, "corruption must be reported")
	}
}

func TestMigrate_AppliesOnce(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "m.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	migrations := []string{
		"CREATE TABLE a (id INTEGER PRIMARY KEY);",
		"CREATE TABLE b (id INTEGER PRIMARY KEY);",
	}
	require.NoError(t, Migrate(ctx, db, migrations))
	require.NoError(t, Migrate(ctx, db, migrations), "re-running must be a no-op")

	var v int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&v))
	assert.Equal(t, 2, v)

	err = Migrate(ctx, db, migrations[:1])
	assert.Error(t, err, "older binary must refuse a newer schema")
}

func TestDSN_CarriesPragmas(t *testing.T) {
	dsn := DSN("/tmp/x.db", DefaultConfig())
	assert.Contains(t, dsn, "journal_mode(WAL)")
	assert.Contains(t, dsn, "busy_timeout(5000)")
}
