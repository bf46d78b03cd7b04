// Package indexer runs the mapping rules against their source databases and
// upserts the projected rows into the search index.
//
// A run is a one-shot job: it takes the index lock, makes sure the schema is
// current, then for every source attaches the index to a connection on the
// source and executes each rule as a single INSERT OR REPLACE ... SELECT.
// Rows are identified by (type, key), so running the same mapping twice
// leaves the index unchanged.
package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
	"github.com/Aman-CERP/amanbeta/internal/mapping"
	"github.com/Aman-CERP/amanbeta/internal/store"
	"github.com/Aman-CERP/amanbeta/internal/ui"
)

// attachedSchema is the name the index database is attached under on each
// source connection.
const attachedSchema = "beta_index"

// Options configures a run.
type Options struct {
	// Tokenizer for the full-text table when it is first created.
	// Defaults to porter. "none" uses the FTS5 default.
	Tokenizer string

	// Sources restricts the run to these sources. Each entry matches a source
	// id exactly, by base name, or by resolved path. Empty means all.
	Sources []string

	// SourceDir resolves relative source ids. Defaults to the working directory.
	SourceDir string

	// Driver is the database/sql driver for the index and the sources.
	Driver string

	// Renderer receives progress. Nil discards it.
	Renderer ui.Renderer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Retry governs waiting on a busy index database.
	Retry berrors.RetryConfig
}

// RuleResult is the outcome of one mapping rule.
type RuleResult struct {
	Source     string        `json:"source"`
	RecordType string        `json:"record_type"`
	Type       string        `json:"type"`
	Rows       int64         `json:"rows"`
	Duration   time.Duration `json:"duration"`
}

// Result summarises a run.
type Result struct {
	Sources  int             `json:"sources"`
	Rules    int             `json:"rules"`
	Rows     int64           `json:"rows"`
	Duration time.Duration   `json:"duration"`
	PerRule  []RuleResult    `json:"per_rule"`
	Skipped  []string        `json:"skipped,omitempty"`
	Stages   ui.StageTimings `json:"-"`
}

// Run indexes every selected source of rules into the index database at
// indexPath, creating it if needed. A failing rule aborts the run with a
// mapping rule error; rows written by earlier rules are kept.
func Run(ctx context.Context, indexPath string, rules mapping.Rules, opts Options) (*Result, error) {
	opts = withDefaults(opts)
	log := opts.Logger
	start := time.Now()

	lock := NewIndexLock(indexPath)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, berrors.Wrap(berrors.ErrCodeIndexFailed, err)
	}
	if !acquired {
		return nil, berrors.New(berrors.ErrCodeIndexLocked,
			fmt.Sprintf("index %s is being written by another run", indexPath), nil).
			WithDetail("lock", lock.Path()).
			WithSuggestion("Wait for the other amanbeta index run to finish")
	}
	defer func() { _ = lock.Unlock() }()

	if err := store.ValidateIntegrity(ctx, indexPath, store.WithDriver(opts.Driver)); err != nil {
		return nil, berrors.New(berrors.ErrCodeCorruptIndex,
			fmt.Sprintf("index %s failed its integrity check", indexPath), err).
			WithSuggestion("The index is derived data: delete it and run amanbeta index again")
	}

	// Stage 1: schema
	schemaStart := time.Now()
	opts.Renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageSchema,
		Message: fmt.Sprintf("Preparing %s", indexPath),
	})
	idx, err := store.Open(indexPath, store.CreateDir(), store.WithDriver(opts.Driver))
	if err != nil {
		return nil, berrors.Wrap(berrors.ErrCodeIndexFailed, err)
	}
	defer idx.Close()

	err = berrors.RetryBusy(ctx, opts.Retry, func() error {
		return store.EnsureSchema(ctx, idx, opts.Tokenizer)
	})
	if err != nil {
		return nil, berrors.New(berrors.ErrCodeIndexFailed, "failed to prepare index schema", err)
	}
	schemaTime := time.Since(schemaStart)

	// Stage 2: rules
	indexStart := time.Now()
	sources, skipped := selectSources(rules.Sources(), opts.Sources, opts.SourceDir)
	for _, s := range skipped {
		log.Debug("index_source_skipped", slog.String("source", s))
	}
	unmatched := unmatchedFilters(rules.Sources(), opts.Sources, opts.SourceDir)
	for _, f := range unmatched {
		log.Warn("index_source_filter_unmatched", slog.String("filter", f))
		opts.Renderer.AddError(ui.ErrorEvent{
			Item:   f,
			Err:    fmt.Errorf("no source in the mapping matches %q", f),
			IsWarn: true,
		})
	}

	total := 0
	for _, s := range sources {
		total += len(rules[s])
	}

	result := &Result{Skipped: skipped}
	absIndex, err := filepath.Abs(indexPath)
	if err != nil {
		return nil, berrors.Wrap(berrors.ErrCodeIndexFailed, err)
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		per, err := indexSource(ctx, rules, source, absIndex, opts, func(rr RuleResult) {
			result.Rules++
			result.Rows += rr.Rows
			opts.Renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageIndexing,
				Current: result.Rules,
				Total:   total,
				Item:    rr.Type,
				Rows:    rr.Rows,
			})
		})
		result.PerRule = append(result.PerRule, per...)
		if err != nil {
			opts.Renderer.AddError(ui.ErrorEvent{Item: source, Err: err})
			return result, err
		}
		result.Sources++
	}
	indexTime := time.Since(indexStart)

	// Stage 3: optimize
	optimizeStart := time.Now()
	opts.Renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageOptimize,
		Message: "Optimizing full-text index",
	})
	if err := store.Optimize(ctx, idx); err != nil {
		return result, berrors.Wrap(berrors.ErrCodeIndexFailed, err)
	}
	if err := store.Vacuum(ctx, idx); err != nil {
		return result, berrors.Wrap(berrors.ErrCodeIndexFailed, err)
	}
	optimizeTime := time.Since(optimizeStart)

	result.Duration = time.Since(start)
	result.Stages = ui.StageTimings{
		Schema:   schemaTime,
		Index:    indexTime,
		Optimize: optimizeTime,
	}

	opts.Renderer.Complete(ui.CompletionStats{
		Sources:  result.Sources,
		Rules:    result.Rules,
		Rows:     result.Rows,
		Duration: result.Duration,
		Warnings: len(unmatched),
		Stages:   result.Stages,
	})

	log.Info("index_complete",
		slog.String("index", indexPath),
		slog.Int("sources", result.Sources),
		slog.Int("rules", result.Rules),
		slog.Int64("rows", result.Rows),
		slog.Int64("duration_schema_ms", schemaTime.Milliseconds()),
		slog.Int64("duration_index_ms", indexTime.Milliseconds()),
		slog.Int64("duration_optimize_ms", optimizeTime.Milliseconds()),
		slog.Int64("duration_total_ms", result.Duration.Milliseconds()))

	return result, nil
}

func withDefaults(opts Options) Options {
	if opts.Tokenizer == "" {
		opts.Tokenizer = "porter"
	}
	if opts.Driver == "" {
		opts.Driver = store.DriverModernc
	}
	if opts.Renderer == nil {
		opts.Renderer = ui.NopRenderer{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialDelay == 0 {
		opts.Retry = berrors.DefaultRetryConfig()
	}
	return opts
}

// indexSource runs all rules of one source on a single connection with the
// index attached. ATTACH is per connection, so the connection is pinned for
// the whole source.
func indexSource(ctx context.Context, rules mapping.Rules, source string,
	indexPath string, opts Options, done func(RuleResult)) ([]RuleResult, error) {
	path := mapping.SourcePath(source, opts.SourceDir)
	if _, err := os.Stat(path); err != nil {
		return nil, berrors.New(berrors.ErrCodeSourceMissing,
			fmt.Sprintf("source database %s not found", source), err).
			WithDetail("path", path).
			WithSuggestion("Check the source ids in the mapping document or pass --source-dir")
	}

	db, err := store.Open(path, store.KeepJournal(), store.WithDriver(opts.Driver))
	if err != nil {
		return nil, berrors.Wrap(berrors.ErrCodeIndexFailed, err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, berrors.Wrap(berrors.ErrCodeIndexFailed, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS "+attachedSchema, indexPath); err != nil {
		return nil, berrors.New(berrors.ErrCodeIndexFailed,
			fmt.Sprintf("failed to attach index to source %s", source), err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "DETACH DATABASE "+attachedSchema)
	}()

	var results []RuleResult
	for _, recordType := range rules.RecordTypes(source) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		ruleStart := time.Now()
		rows, err := runRule(ctx, conn, mapping.TypeName(source, recordType), rules[source][recordType].SQL, opts.Retry)
		if err != nil {
			opts.Logger.Error("index_rule_failed",
				slog.String("source", source),
				slog.String("record_type", recordType),
				slog.String("error", err.Error()))
			return results, berrors.MappingRuleError(source, recordType, err)
		}
		rr := RuleResult{
			Source:     source,
			RecordType: recordType,
			Type:       mapping.TypeName(source, recordType),
			Rows:       rows,
			Duration:   time.Since(ruleStart),
		}
		opts.Logger.Info("index_rule_complete",
			slog.String("type", rr.Type),
			slog.Int64("rows", rr.Rows),
			slog.Int64("duration_ms", rr.Duration.Milliseconds()))
		results = append(results, rr)
		done(rr)
	}
	return results, nil
}

// runRule checks the rule's columns and upserts its rows in one transaction.
func runRule(ctx context.Context, conn *sql.Conn, typeName, ruleSQL string, retry berrors.RetryConfig) (int64, error) {
	wrapped := WrapRule(typeName, ruleSQL)

	cols, err := probeColumns(ctx, conn, wrapped)
	if err != nil {
		return 0, err
	}
	if err := checkColumns(cols); err != nil {
		return 0, err
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	insert := fmt.Sprintf("INSERT OR REPLACE INTO %s.%s (%s) %s",
		attachedSchema, store.IndexTable, strings.Join(quoted, ", "), wrapped)

	var affected int64
	err = berrors.RetryBusy(ctx, retry, func() error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, insert)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	return affected, err
}

// WrapRule turns a rule's SQL into a SELECT that also yields the type column.
// The rule runs as a subquery, so it may be any statement usable in FROM.
func WrapRule(typeName, ruleSQL string) string {
	body := strings.TrimRight(strings.TrimSpace(ruleSQL), "; \t\r\n")
	literal := "'" + strings.ReplaceAll(typeName, "'", "''") + "'"
	return fmt.Sprintf("SELECT %s AS \"type\", * FROM (\n%s\n)", literal, body)
}

func probeColumns(ctx context.Context, conn *sql.Conn, wrapped string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, wrapped+" LIMIT 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.Columns()
}

// checkColumns rejects projections the index table cannot take.
func checkColumns(cols []string) error {
	known := make(map[string]bool)
	for _, c := range store.IndexColumns() {
		known[c] = true
	}

	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		switch {
		case !known[c]:
			return fmt.Errorf("column %q is not an index column (want one of %s)",
				c, strings.Join(store.IndexColumns(), ", "))
		case seen[c]:
			if c == "type" {
				return fmt.Errorf(`rule must not select a "type" column, it is set from the mapping`)
			}
			return fmt.Errorf("column %q selected more than once", c)
		}
		seen[c] = true
	}
	if !seen["key"] {
		return fmt.Errorf(`rule does not select a "key" column`)
	}
	return nil
}
