package search

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
	"github.com/Aman-CERP/amanbeta/internal/store"
)

// Engine answers queries against one index database. It is safe for
// concurrent use; every query runs in its own read transaction.
type Engine struct {
	db    *sql.DB
	owned bool
	log   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine wraps an open index database. The caller keeps ownership of db.
func NewEngine(db *sql.DB, opts ...Option) *Engine {
	e := &Engine{db: db, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open opens the index database at path read-only with the given driver
// (empty for the default). Close releases it.
func Open(path, driver string, opts ...Option) (*Engine, error) {
	db, err := store.Open(path, store.ReadOnly(), store.MaxOpenConns(4), store.WithDriver(driver))
	if err != nil {
		return nil, berrors.New(berrors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot open index %s", path), err).
			WithSuggestion("Build the index first with: amanbeta index <index-db> <mapping>")
	}
	e := NewEngine(db, opts...)
	e.owned = true
	return e, nil
}

// Close closes the database if the engine opened it.
func (e *Engine) Close() error {
	if e.owned {
		return e.db.Close()
	}
	return nil
}

// Stats reports record counts per type for the index at path.
func (e *Engine) Stats(ctx context.Context, path string) (*store.Stats, error) {
	return store.IndexStats(ctx, e.db, path)
}

// Search runs one query. Free text the full-text engine cannot parse is
// retried once as literal tokens; if that fails too the error is a
// user-facing query error.
func (e *Engine) Search(ctx context.Context, p Params) (*Page, error) {
	page, err := e.search(ctx, p, p.Q)
	if err == nil {
		return page, nil
	}
	if p.Q == "" || !isFTSSyntax(err) {
		return nil, berrors.New(berrors.ErrCodeSearchFailed, "search failed", err)
	}

	first := berrors.FullTextSyntaxError(p.Q, err)
	escaped := EscapeFTS(p.Q)
	e.log.Info("search_fts_retry",
		slog.String("q", p.Q),
		slog.String("escaped", escaped),
		slog.String("error", err.Error()))

	page, err = e.search(ctx, p, escaped)
	if err != nil {
		if isFTSSyntax(err) {
			return nil, berrors.QueryError(p.Q, fmt.Errorf("%w (escaped retry: %v)", first, err))
		}
		return nil, berrors.New(berrors.ErrCodeSearchFailed, "search failed", err)
	}
	page.Escaped = true
	return page, nil
}

// search reads rows, count, facets and category labels from one snapshot.
func (e *Engine) search(ctx context.Context, p Params, match string) (*Page, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	f := buildFilter(p, match)
	sortBy := p.Sort()

	results, err := queryRows(ctx, tx, f, sortBy, p.Limit())
	if err != nil {
		return nil, err
	}
	count, buckets, err := queryBuckets(ctx, tx, f)
	if err != nil {
		return nil, err
	}
	labels, err := categoryLabels(ctx, tx)
	if err != nil {
		return nil, err
	}

	return &Page{
		Params:    p,
		Sort:      sortBy,
		Count:     count,
		Limit:     p.Limit(),
		Results:   results,
		Facets:    buildFacets(p, buckets, labels),
		SortLinks: sortLinks(p, sortBy),
	}, nil
}

// filter is the FROM and WHERE part shared by the row and facet queries.
type filter struct {
	fts   bool
	where []string
	args  []any
}

func buildFilter(p Params, match string) filter {
	var f filter
	if match != "" {
		f.fts = true
		f.where = append(f.where, "search_index_fts MATCH ?")
		f.args = append(f.args, match)
	}
	if p.Date != "" {
		f.where = append(f.where, "substr(search_index.timestamp, 1, 10) = ?")
		f.args = append(f.args, p.Date)
	}
	if p.Type != "" {
		f.where = append(f.where, `search_index."type" = ?`)
		f.args = append(f.args, p.Type)
	}
	if p.Category != "" {
		f.where = append(f.where, "search_index.category = ?")
		f.args = append(f.args, p.Category)
	}
	if p.IsPublic != "" {
		f.where = append(f.where, "search_index.is_public = ?")
		f.args = append(f.args, p.IsPublic)
	}
	return f
}

func (f filter) clause() string {
	var b strings.Builder
	if f.fts {
		b.WriteString("FROM search_index_fts JOIN search_index ON search_index.rowid = search_index_fts.rowid")
	} else {
		b.WriteString("FROM search_index")
	}
	if len(f.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(f.where, " AND "))
	}
	return b.String()
}

// orderBy ends every order with type and key so equal timestamps sort the
// same way on every run.
func orderBy(sortBy string) string {
	switch sortBy {
	case SortRelevance:
		return `search_index_fts.rank, search_index.timestamp DESC, search_index."type", search_index."key"`
	case SortOldest:
		return `search_index.timestamp, search_index."type", search_index."key"`
	default:
		return `search_index.timestamp DESC, search_index."type" DESC, search_index."key" DESC`
	}
}

func queryRows(ctx context.Context, tx *sql.Tx, f filter, sortBy string, limit int) ([]Record, error) {
	rank := "0.0"
	if f.fts {
		rank = "search_index_fts.rank"
	}
	if sortBy == SortRelevance && !f.fts {
		sortBy = SortNewest
	}

	query := fmt.Sprintf(`SELECT search_index."type", search_index."key", search_index.title,
  search_index.timestamp, search_index.category, search_index.is_public,
  search_index.search_1, search_index.search_2, search_index.search_3, %s
%s
ORDER BY %s
LIMIT ?`, rank, f.clause(), orderBy(sortBy))

	args := append(append([]any{}, f.args...), limit)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]Record, 0)
	for rows.Next() {
		var (
			r                  Record
			key, title, ts     sql.NullString
			category, isPublic sql.NullInt64
			s1, s2, s3         sql.NullString
			rankValue          sql.NullFloat64
		)
		if err := rows.Scan(&r.Type, &key, &title, &ts, &category, &isPublic,
			&s1, &s2, &s3, &rankValue); err != nil {
			return nil, err
		}
		r.Key = key.String
		r.Title = title.String
		r.Timestamp = ts.String
		r.IsPublic = isPublic.Int64
		r.Rank = rankValue.Float64
		if category.Valid {
			r.Category = &category.Int64
		}
		r.Search1 = nullString(s1)
		r.Search2 = nullString(s2)
		r.Search3 = nullString(s3)
		results = append(results, r)
	}
	return results, rows.Err()
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// bucket is one (facet, value, count) row of the aggregate query.
type bucket struct {
	facet string
	value string
	count int
}

// queryBuckets computes the total count and all facet buckets in one
// statement over the filtered rows. Null values get no bucket.
func queryBuckets(ctx context.Context, tx *sql.Tx, f filter) (int, []bucket, error) {
	query := fmt.Sprintf(`WITH filtered AS (
  SELECT search_index."type" AS "type", search_index.category AS category,
    search_index.is_public AS is_public, substr(search_index.timestamp, 1, 10) AS day
  %s
)
SELECT '', NULL, count(*) FROM filtered
UNION ALL
SELECT 'type', "type", count(*) FROM filtered WHERE "type" IS NOT NULL GROUP BY "type"
UNION ALL
SELECT 'category', category, count(*) FROM filtered WHERE category IS NOT NULL GROUP BY category
UNION ALL
SELECT 'is_public', is_public, count(*) FROM filtered WHERE is_public IS NOT NULL GROUP BY is_public
UNION ALL
SELECT 'timestamp', day, count(*) FROM filtered WHERE day IS NOT NULL GROUP BY day`, f.clause())

	rows, err := tx.QueryContext(ctx, query, f.args...)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var (
		total   int
		buckets []bucket
	)
	for rows.Next() {
		var (
			b     bucket
			value any
		)
		if err := rows.Scan(&b.facet, &value, &b.count); err != nil {
			return 0, nil, err
		}
		if b.facet == "" {
			total = b.count
			continue
		}
		b.value = formatValue(value)
		buckets = append(buckets, b)
	}
	return total, buckets, rows.Err()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return fmt.Sprintf("%d", x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func categoryLabels(ctx context.Context, tx *sql.Tx) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, name FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}
	defer rows.Close()

	labels := make(map[string]string)
	for rows.Next() {
		var (
			id   int64
			name sql.NullString
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			labels[fmt.Sprintf("%d", id)] = name.String
		}
	}
	return labels, rows.Err()
}
