package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// Optimize merges the full-text index segments.
func Optimize(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO search_index_fts (search_index_fts) VALUES ('optimize')`); err != nil {
		return fmt.Errorf("failed to optimize full-text index: %w", err)
	}
	return nil
}

// Vacuum rebuilds the database file, reclaiming space left by replaced rows.
func Vacuum(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("failed to vacuum: %w", err)
	}
	return nil
}

// ValidateIntegrity checks an existing index database before it is reused.
// A missing file is valid: it will be created.
func ValidateIntegrity(ctx context.Context, path string, opts ...Option) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := Open(path, append(opts, ReadOnly())...)
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Remove deletes a database file with its WAL and shared-memory files.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	return nil
}

// TypeCount is the number of indexed records of one type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// Stats summarises an index database.
type Stats struct {
	Path      string      `json:"path"`
	Tokenizer string      `json:"tokenizer"`
	Total     int64       `json:"total"`
	Types     []TypeCount `json:"types"`
	SizeBytes int64       `json:"size_bytes"`
}

// IndexStats reads record counts per type and the tokenizer in use.
func IndexStats(ctx context.Context, db *sql.DB, path string) (*Stats, error) {
	stats := &Stats{Path: path}
	if info, err := os.Stat(path); err == nil {
		stats.SizeBytes = info.Size()
	}

	tok, err := TokenizerOf(ctx, db)
	if err != nil {
		return nil, err
	}
	stats.Tokenizer = tok

	rows, err := db.QueryContext(ctx,
		`SELECT "type", count(*) FROM search_index GROUP BY "type" ORDER BY "type"`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan record count: %w", err)
		}
		stats.Types = append(stats.Types, tc)
		stats.Total += tc.Count
	}
	return stats, rows.Err()
}
