package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Table names in the index database.
const (
	IndexTable      = "search_index"
	FTSTable        = "search_index_fts"
	CategoriesTable = "categories"
)

// Category is a row of the categories table.
type Category struct {
	ID   int64
	Name string
}

// SeedCategories are upserted on every schema check.
var SeedCategories = []Category{
	{ID: 1, Name: "created"},
	{ID: 2, Name: "saved"},
	{ID: 3, Name: "received"},
}

// column is one expected column of search_index.
type column struct {
	name string
	decl string
}

// indexColumns in table order. decl is usable both in CREATE TABLE and in
// ALTER TABLE ADD COLUMN.
var indexColumns = []column{
	{"type", "TEXT"},
	{"key", "TEXT"},
	{"title", "TEXT"},
	{"timestamp", "TEXT"},
	{"category", "INTEGER REFERENCES categories(id)"},
	{"is_public", "INTEGER NOT NULL DEFAULT 0"},
	{"search_1", "TEXT"},
	{"search_2", "TEXT"},
	{"search_3", "TEXT"},
}

// IndexColumns returns the search_index column names in table order.
func IndexColumns() []string {
	names := make([]string, len(indexColumns))
	for i, c := range indexColumns {
		names[i] = c.name
	}
	return names
}

// ftsColumns are the text columns mirrored into the full-text table.
var ftsColumns = []string{"title", "search_1"}

var tokenizers = map[string]string{
	"porter":    "porter",
	"unicode61": "unicode61",
	"ascii":     "ascii",
	"trigram":   "trigram",
	"none":      "",
	"":          "",
}

// EnsureSchema creates or migrates the index schema. It is idempotent and only
// ever adds: missing tables, missing columns, the full-text table with its
// triggers, secondary indexes, and the seed categories. tokenizer only matters
// when the full-text table is first created.
func EnsureSchema(ctx context.Context, db *sql.DB, tokenizer string) error {
	tok, ok := tokenizers[strings.ToLower(tokenizer)]
	if !ok {
		return fmt.Errorf("unsupported tokenizer %q", tokenizer)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS categories (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		return fmt.Errorf("failed to create categories: %w", err)
	}

	exists, err := tableExists(ctx, tx, IndexTable)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := tx.ExecContext(ctx, createIndexTableSQL()); err != nil {
			return fmt.Errorf("failed to create %s: %w", IndexTable, err)
		}
	} else if err := migrateColumns(ctx, tx); err != nil {
		return err
	}

	ftsExists, err := tableExists(ctx, tx, FTSTable)
	if err != nil {
		return err
	}
	if !ftsExists {
		if err := createFTS(ctx, tx, tok); err != nil {
			return err
		}
	}

	for _, col := range []string{"timestamp", "category", "is_public"} {
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_search_index_%s ON search_index(%q)`, col, col)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", col, err)
		}
	}

	for _, c := range SeedCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, name) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name`, c.ID, c.Name); err != nil {
			return fmt.Errorf("failed to seed category %d: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}

func createIndexTableSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE search_index (\n")
	for _, c := range indexColumns {
		fmt.Fprintf(&b, "  %q %s,\n", c.name, c.decl)
	}
	b.WriteString(`  PRIMARY KEY ("type", "key")` + "\n)")
	return b.String()
}

// migrateColumns adds any expected column missing from an existing table.
// SQLite cannot add a constraint to an existing column, so a category column
// that predates the foreign key keeps working without it.
func migrateColumns(ctx context.Context, tx *sql.Tx) error {
	existing, err := tableColumns(ctx, tx, IndexTable)
	if err != nil {
		return err
	}

	for _, c := range indexColumns {
		if existing[c.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE search_index ADD COLUMN %q %s", c.name, c.decl)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s: %w", c.name, err)
		}
		slog.Info("schema_column_added", slog.String("column", c.name))
	}

	if existing["category"] {
		hasFK, err := hasForeignKey(ctx, tx, IndexTable, "category", CategoriesTable)
		if err != nil {
			return err
		}
		if !hasFK {
			slog.Info("schema_fk_skipped",
				slog.String("table", IndexTable),
				slog.String("column", "category"),
				slog.String("reason", "column predates the categories foreign key"))
		}
	}
	return nil
}

// createFTS creates the external-content full-text table, the triggers that keep
// it in sync, and indexes any rows already present.
func createFTS(ctx context.Context, tx *sql.Tx, tokenizer string) error {
	cols := strings.Join(ftsColumns, ", ")
	opts := "content='search_index', content_rowid='rowid'"
	if tokenizer != "" {
		opts += fmt.Sprintf(", tokenize='%s'", tokenizer)
	}

	newCols := prefixed("new.", ftsColumns)
	oldCols := prefixed("old.", ftsColumns)

	stmts := []string{
		fmt.Sprintf(`CREATE VIRTUAL TABLE search_index_fts USING fts5(%s, %s)`, cols, opts),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS search_index_ai AFTER INSERT ON search_index BEGIN
  INSERT INTO search_index_fts (rowid, %[1]s) VALUES (new.rowid, %[2]s);
END`, cols, newCols),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS search_index_ad AFTER DELETE ON search_index BEGIN
  INSERT INTO search_index_fts (search_index_fts, rowid, %[1]s) VALUES ('delete', old.rowid, %[2]s);
END`, cols, oldCols),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS search_index_au AFTER UPDATE ON search_index BEGIN
  INSERT INTO search_index_fts (search_index_fts, rowid, %[1]s) VALUES ('delete', old.rowid, %[2]s);
  INSERT INTO search_index_fts (rowid, %[1]s) VALUES (new.rowid, %[3]s);
END`, cols, oldCols, newCols),
		`INSERT INTO search_index_fts (search_index_fts) VALUES ('rebuild')`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create full-text table: %w", err)
		}
	}
	return nil
}

func prefixed(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	return n > 0, nil
}

func tableColumns(ctx context.Context, q querier, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func hasForeignKey(ctx context.Context, q querier, table, column, refTable string) (bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return false, fmt.Errorf("failed to read foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return false, err
	}
	found := false
	for rows.Next() {
		vals := make([]sql.NullString, len(colNames))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return false, fmt.Errorf("failed to scan foreign key of %s: %w", table, err)
		}
		rec := make(map[string]string, len(colNames))
		for i, name := range colNames {
			rec[name] = vals[i].String
		}
		if rec["from"] == column && strings.EqualFold(rec["table"], refTable) {
			found = true
		}
	}
	return found, rows.Err()
}

var tokenizeRe = regexp.MustCompile(`tokenize\s*=\s*['"]([a-zA-Z0-9_ ]+)['"]`)

// TokenizerOf reports the tokenizer of an existing full-text table: "none" when
// the FTS5 default is in use, "" when there is no full-text table yet.
func TokenizerOf(ctx context.Context, db *sql.DB) (string, error) {
	var ddl sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, FTSTable).Scan(&ddl)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read full-text table definition: %w", err)
	}
	if m := tokenizeRe.FindStringSubmatch(ddl.String); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	return "none", nil
}
