// Package store opens SQLite databases for amanbeta and owns the index schema:
// the search_index table, its categories, and the search_index_fts shadow table.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registered as "sqlite"
)

const (
	// DriverModernc is the pure Go driver, always available.
	DriverModernc = "sqlite"
	// DriverMattn is the cgo driver; FTS5 needs a build with -tags sqlite_fts5.
	DriverMattn = "sqlite3"
)

type options struct {
	driver       string
	readOnly     bool
	createDir    bool
	keepJournal  bool
	maxOpenConns int
}

// Option configures Open.
type Option func(*options)

// WithDriver selects the database/sql driver. Empty keeps the default.
func WithDriver(name string) Option {
	return func(o *options) {
		if name != "" {
			o.driver = name
		}
	}
}

// ReadOnly opens the database in read-only mode; the file must exist.
func ReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// KeepJournal leaves the journal mode and synchronous setting alone. Source
// databases are opened this way so indexing never converts them to WAL.
func KeepJournal() Option {
	return func(o *options) { o.keepJournal = true }
}

// CreateDir creates the parent directory of the database file if needed.
func CreateDir() Option {
	return func(o *options) { o.createDir = true }
}

// MaxOpenConns bounds the pool. Writers use 1 so that ATTACH and pragmas stick.
func MaxOpenConns(n int) Option {
	return func(o *options) { o.maxOpenConns = n }
}

// Open opens the SQLite database at path. Every pooled connection gets the same
// pragmas through the DSN: WAL, a 5s busy timeout, and recursive triggers so
// that INSERT OR REPLACE fires the delete trigger of the full-text table.
func Open(path string, opts ...Option) (*sql.DB, error) {
	o := newOptions(opts)

	if o.readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("database %s: %w", path, err)
		}
	} else if o.createDir {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	dsn, err := o.dsn(path)
	if err != nil {
		return nil, err
	}

	if !HasDriver(o.driver) {
		return nil, fmt.Errorf("sqlite driver %q is not compiled in (sqlite3 needs a cgo build with -tags sqlite_fts5)", o.driver)
	}

	db, err := sql.Open(o.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetMaxIdleConns(o.maxOpenConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return db, nil
}

func newOptions(opts []Option) options {
	o := options{driver: DriverModernc, maxOpenConns: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DSN builds the connection string Open would use for path.
func DSN(path string, opts ...Option) (string, error) {
	o := newOptions(opts)
	return o.dsn(path)
}

// dsn spells the pragmas the way each driver expects them.
func (o options) dsn(path string) (string, error) {
	setJournal := !o.readOnly && !o.keepJournal

	q := url.Values{}
	switch o.driver {
	case DriverModernc:
		pragmas := []string{"busy_timeout(5000)", "recursive_triggers(1)", "temp_store(MEMORY)"}
		if setJournal {
			pragmas = append(pragmas, "journal_mode(WAL)", "synchronous(NORMAL)")
		}
		for _, p := range pragmas {
			q.Add("_pragma", p)
		}
	case DriverMattn:
		q.Set("_busy_timeout", "5000")
		q.Set("_recursive_triggers", "on")
		if setJournal {
			q.Set("_journal_mode", "WAL")
			q.Set("_synchronous", "NORMAL")
		}
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", o.driver)
	}
	if o.readOnly {
		q.Set("mode", "ro")
	}

	return "file:" + escapePath(path) + "?" + q.Encode(), nil
}

// escapePath keeps a filesystem path intact inside a file: URI.
func escapePath(path string) string {
	r := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")
	return r.Replace(path)
}

// HasDriver reports whether a database/sql driver is registered under name.
func HasDriver(name string) bool {
	for _, d := range sql.Drivers() {
		if d == name {
			return true
		}
	}
	return false
}
