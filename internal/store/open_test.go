package store

import (
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN_Modernc(t *testing.T) {
	dsn, err := DSN("/tmp/beta.db")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(dsn, "file:/tmp/beta.db?"))
	q, err := url.ParseQuery(strings.SplitN(dsn, "?", 2)[1])
	require.NoError(t, err)
	assert.Contains(t, q["_pragma"], "recursive_triggers(1)")
	assert.Contains(t, q["_pragma"], "journal_mode(WAL)")
	assert.Empty(t, q.Get("mode"))
}

func TestDSN_ReadOnlySkipsWAL(t *testing.T) {
	dsn, err := DSN("/tmp/beta.db", ReadOnly())
	require.NoError(t, err)

	q, err := url.ParseQuery(strings.SplitN(dsn, "?", 2)[1])
	require.NoError(t, err)
	assert.Equal(t, "ro", q.Get("mode"))
	assert.NotContains(t, q["_pragma"], "journal_mode(WAL)")
}

func TestDSN_Mattn(t *testing.T) {
	dsn, err := DSN("/data/a b.db", WithDriver(DriverMattn))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(dsn, "file:/data/a b.db?"))
	assert.Contains(t, dsn, "_recursive_triggers=on")
	assert.Contains(t, dsn, "_journal_mode=WAL")
}

func TestDSN_KeepJournal(t *testing.T) {
	dsn, err := DSN("/src/emails.db", KeepJournal())
	require.NoError(t, err)
	assert.NotContains(t, dsn, "journal_mode")
	assert.Contains(t, dsn, "recursive_triggers")
}

func TestDSN_EscapesQueryCharacters(t *testing.T) {
	dsn, err := DSN("/tmp/what?.db")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/what%3f.db?"))
}

func TestDSN_UnknownDriver(t *testing.T) {
	_, err := DSN("x", WithDriver("postgres"))
	assert.Error(t, err)
}

func TestOpen_CreateDirAndRecursiveTriggers(t *testing.T) {
	// Given: a path in a directory that does not exist yet
	path := filepath.Join(t.TempDir(), "nested", "dir", "beta.db")

	// When: opening with CreateDir
	db, err := Open(path, CreateDir())
	require.NoError(t, err)
	defer db.Close()

	// Then: the connection has recursive triggers on and WAL journaling
	var recursive int
	require.NoError(t, db.QueryRow("PRAGMA recursive_triggers").Scan(&recursive))
	assert.Equal(t, 1, recursive)
	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))
}

func TestOpen_ReadOnlyRequiresFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"), ReadOnly())
	assert.Error(t, err)
}

func TestOpen_ReadOnlyRejectsWrites(t *testing.T) {
	db, path := openTemp(t)
	_, err := db.Exec(`CREATE TABLE t (x)`)
	require.NoError(t, err)

	ro, err := Open(path, ReadOnly(), MaxOpenConns(4))
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.Exec(`INSERT INTO t VALUES (1)`)
	assert.Error(t, err)
}

func TestOpen_UnregisteredDriver(t *testing.T) {
	if HasDriver(DriverMattn) {
		t.Skip("sqlite3 driver compiled in")
	}

	_, err := Open(filepath.Join(t.TempDir(), "beta.db"), WithDriver(DriverMattn))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "-tags sqlite_fts5")
}
