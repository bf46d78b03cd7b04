//go:build cgo && sqlite_fts5

package store

import (
	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, registered as "sqlite3"
)
