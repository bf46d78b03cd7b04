// Package assemble turns a page of search results into a response: each
// result is enriched with its rule's display_sql row from the source
// database and rendered with its display template.
package assemble

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"sync"

	"golang.org/x/sync/errgroup"

	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
	"github.com/Aman-CERP/amanbeta/internal/mapping"
	"github.com/Aman-CERP/amanbeta/internal/render"
	"github.com/Aman-CERP/amanbeta/internal/search"
	"github.com/Aman-CERP/amanbeta/internal/store"
)

// DefaultWorkers bounds concurrent display_sql lookups per response.
const DefaultWorkers = 8

// Renderer renders one result. display is the rule's template, possibly
// empty; data holds the record fields and the enrichment under "display".
type Renderer interface {
	Render(typeName, display string, data map[string]any) (string, error)
}

// Result is one rendered search result.
type Result struct {
	search.Record
	Display map[string]any `json:"display"`
	Output  string         `json:"output"`

	// Error is the render failure shown inline in debug mode.
	Error string `json:"error,omitempty"`
}

// Response is what a query returns to its caller.
type Response struct {
	Q         string            `json:"q"`
	Count     int               `json:"count"`
	Sort      string            `json:"sort"`
	Results   []Result          `json:"results"`
	Facets    []search.Facet    `json:"facets"`
	SortLinks []search.SortLink `json:"sort_links"`
	Escaped   bool              `json:"escaped,omitempty"`
}

// Assembler enriches and renders results. It keeps one read-only handle per
// source database, opened on first use, and is safe for concurrent use.
type Assembler struct {
	rules       mapping.Rules
	mappingPath string
	renderer    Renderer
	sourceDir   string
	driver      string
	workers     int
	debug       bool
	log         *slog.Logger

	mu      sync.Mutex
	sources map[string]*sourceHandle
}

type sourceHandle struct {
	once sync.Once
	db   *sql.DB
	err  error
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithRenderer sets the renderer. Defaults to a render.TemplateRenderer.
func WithRenderer(r Renderer) Option {
	return func(a *Assembler) { a.renderer = r }
}

// WithMappingPath reloads the mapping document from path on every Assemble
// call instead of using the rules passed to New.
func WithMappingPath(path string) Option {
	return func(a *Assembler) { a.mappingPath = path }
}

// WithSourceDir resolves relative source ids against dir.
func WithSourceDir(dir string) Option {
	return func(a *Assembler) { a.sourceDir = dir }
}

// WithDriver selects the database/sql driver for source databases.
func WithDriver(driver string) Option {
	return func(a *Assembler) { a.driver = driver }
}

// WithWorkers bounds concurrent enrichment lookups.
func WithWorkers(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithDebug renders template failures inline instead of failing the response.
func WithDebug(debug bool) Option {
	return func(a *Assembler) { a.debug = debug }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.log = l
		}
	}
}

// New creates an Assembler for rules.
func New(rules mapping.Rules, opts ...Option) (*Assembler, error) {
	a := &Assembler{
		rules:   rules,
		workers: DefaultWorkers,
		log:     slog.Default(),
		sources: make(map[string]*sourceHandle),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.renderer == nil {
		r, err := render.New(render.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		a.renderer = r
	}
	return a, nil
}

// Assemble enriches and renders every result of page, keeping their order.
// q is passed to display_sql as :q.
func (a *Assembler) Assemble(ctx context.Context, page *search.Page, q string) (*Response, error) {
	rules := a.rules
	if a.mappingPath != "" {
		loaded, err := mapping.Load(a.mappingPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	results := make([]Result, len(page.Results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, rec := range page.Results {
		g.Go(func() error {
			res, err := a.assembleOne(gctx, rules, rec, q)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Response{
		Q:         q,
		Count:     page.Count,
		Sort:      page.Sort,
		Results:   results,
		Facets:    page.Facets,
		SortLinks: page.SortLinks,
		Escaped:   page.Escaped,
	}, nil
}

func (a *Assembler) assembleOne(ctx context.Context, rules mapping.Rules, rec search.Record, q string) (Result, error) {
	res := Result{Record: rec, Display: map[string]any{}}

	rule, ok := rules.Lookup(rec.Type)
	if !ok {
		a.log.Debug("assemble_rule_missing", slog.String("type", rec.Type))
	}

	var failure error
	if ok && rule.DisplaySQL != "" {
		display, err := a.enrich(ctx, rec, rule.DisplaySQL, q)
		if err != nil {
			failure = fmt.Errorf("display_sql: %w", err)
		} else {
			res.Display = display
		}
	}

	data := rec.Fields()
	data["display"] = res.Display

	if failure == nil {
		out, err := a.renderer.Render(rec.Type, rule.Display, data)
		if err == nil {
			res.Output = out
			return res, nil
		}
		failure = err
	}

	rerr := berrors.RenderError(rec.Type, rec.Key, failure)
	if !a.debug {
		return Result{}, rerr
	}
	a.log.Warn("assemble_render_failed", berrors.LogAttrs(rerr)...)
	res.Error = rerr.Error()
	res.Output = diagnostic(rerr, data)
	return res, nil
}

// diagnostic is the inline output for a result that failed to render.
func diagnostic(err error, data map[string]any) string {
	raw, ferr := render.Fallback(data)
	if ferr != nil {
		raw = ""
	}
	return `<div class="render-error"><p>` + html.EscapeString(err.Error()) + "</p>" + raw + "</div>"
}

var namedParam = regexp.MustCompile(`:(key|q)\b`)

// bindArgs binds :key and :q, but only those the statement uses.
func bindArgs(query, key, q string) []any {
	var args []any
	seen := map[string]bool{}
	for _, m := range namedParam.FindAllStringSubmatch(query, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if name == "key" {
			args = append(args, sql.Named("key", key))
		} else {
			args = append(args, sql.Named("q", q))
		}
	}
	return args
}

// enrich runs display_sql against the record's source and returns its first
// row. No row is not an error: the enrichment is empty.
func (a *Assembler) enrich(ctx context.Context, rec search.Record, displaySQL, q string) (map[string]any, error) {
	source, _, ok := mapping.SplitType(rec.Type)
	if !ok {
		return nil, fmt.Errorf("malformed type %q", rec.Type)
	}
	db, err := a.source(source)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, displaySQL, bindArgs(displaySQL, rec.Key, q)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		a.log.Debug("enrichment_lookup_miss",
			slog.String("type", rec.Type),
			slog.String("key", rec.Key))
		return map[string]any{}, nil
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	display := make(map[string]any, len(cols))
	for i, c := range cols {
		if b, ok := vals[i].([]byte); ok {
			display[c] = string(b)
			continue
		}
		display[c] = vals[i]
	}
	return display, nil
}

// source returns the cached read-only handle for a source, opening it once.
func (a *Assembler) source(id string) (*sql.DB, error) {
	a.mu.Lock()
	h, ok := a.sources[id]
	if !ok {
		h = &sourceHandle{}
		a.sources[id] = h
	}
	a.mu.Unlock()

	h.once.Do(func() {
		path := mapping.SourcePath(id, a.sourceDir)
		h.db, h.err = store.Open(path,
			store.ReadOnly(), store.MaxOpenConns(a.workers), store.WithDriver(a.driver))
	})
	return h.db, h.err
}

// Close closes every cached source handle.
func (a *Assembler) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for id, h := range a.sources {
		if h.db != nil {
			if err := h.db.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(a.sources, id)
	}
	return firstErr
}
