package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanbeta/configs"
	"github.com/Aman-CERP/amanbeta/internal/assemble"
	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
	"github.com/Aman-CERP/amanbeta/internal/indexer"
	"github.com/Aman-CERP/amanbeta/internal/mapping"
	"github.com/Aman-CERP/amanbeta/internal/sample"
	"github.com/Aman-CERP/amanbeta/internal/search"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, sample.Write(ctx, dir, ""))
	rules, err := mapping.Parse([]byte(configs.MappingTemplate))
	require.NoError(t, err)

	indexPath := filepath.Join(dir, "beta.db")
	_, err = indexer.Run(ctx, indexPath, rules, indexer.Options{SourceDir: dir, Logger: quietLogger()})
	require.NoError(t, err)

	engine, err := search.Open(indexPath, "", search.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	asm, err := assemble.New(rules, assemble.WithSourceDir(dir), assemble.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = asm.Close() })

	return NewRouter(Deps{Searcher: engine, Assembler: asm, Logger: quietLogger()})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Search(t *testing.T) {
	// Given: a router over the sample index
	h := sampleRouter(t)

	// When: searching for "things" restricted to emails
	rec := get(t, h, "/-/beta?q=things&type=emails.db%2Femails")

	// Then: the response lists both emails with rendered output and facets
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var resp assemble.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "things", resp.Q)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		assert.Equal(t, "emails.db/emails", r.Type)
		assert.Contains(t, r.Output, "Email from blah@example.com")
	}
	require.NotEmpty(t, resp.Facets)
	assert.Equal(t, "type", resp.Facets[0].Name)
}

func TestRouter_Timeline(t *testing.T) {
	h := sampleRouter(t)

	rec := get(t, h, "/-/beta?sort=oldest")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp assemble.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, search.SortOldest, resp.Sort)
	require.Len(t, resp.Results, 4)
	assert.Equal(t, "1", resp.Results[0].Key)
	assert.Equal(t, sample.NewerCommit, resp.Results[3].Key)
}

func TestRouter_Healthz(t *testing.T) {
	h := NewRouter(Deps{Logger: quietLogger()})

	rec := get(t, h, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_RequestIDIsEchoed(t *testing.T) {
	h := NewRouter(Deps{Logger: quietLogger()})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := NewRouter(Deps{Logger: quietLogger()})

	rec := get(t, h, "/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// stubSearcher returns a fixed page or error.
type stubSearcher struct {
	page *search.Page
	err  error
	got  search.Params
}

func (s *stubSearcher) Search(_ context.Context, p search.Params) (*search.Page, error) {
	s.got = p
	return s.page, s.err
}

type stubAssembler struct{ err error }

func (s stubAssembler) Assemble(_ context.Context, page *search.Page, q string) (*assemble.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &assemble.Response{Q: q, Count: page.Count, Sort: page.Sort}, nil
}

func TestRouter_ParsesParams(t *testing.T) {
	s := &stubSearcher{page: &search.Page{Sort: search.SortNewest}}
	h := NewRouter(Deps{Searcher: s, Assembler: stubAssembler{}, Logger: quietLogger()})

	rec := get(t, h, "/-/beta?q=+dog+&sort=newest&category=2&is_public=1&timestamp__date=2020-08-01")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dog", s.got.Q)
	assert.Equal(t, "newest", s.got.RawSort)
	assert.Equal(t, "2", s.got.Category)
	assert.Equal(t, "1", s.got.IsPublic)
	assert.Equal(t, "2020-08-01", s.got.Date)
}

func TestRouter_ErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		searchErr  error
		renderErr  error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "bad query is a client error",
			searchErr:  berrors.QueryError(`"x`, errors.New("fts5: syntax error")),
			wantStatus: http.StatusBadRequest,
			wantCode:   berrors.ErrCodeInvalidQuery,
		},
		{
			name:       "broken mapping is a client error",
			renderErr:  berrors.ConfigError("invalid mapping", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   berrors.ErrCodeConfigInvalid,
		},
		{
			name:       "render failure is a server error",
			renderErr:  berrors.RenderError("a.db/t", "1", errors.New("boom")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   berrors.ErrCodeRenderFailed,
		},
		{
			name:       "plain error is internal",
			searchErr:  errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   berrors.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSearcher{page: &search.Page{}, err: tt.searchErr}
			h := NewRouter(Deps{Searcher: s, Assembler: stubAssembler{err: tt.renderErr}, Logger: quietLogger()})

			rec := get(t, h, "/-/beta?q=x")

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotContains(t, body, "cause")
		})
	}
}

func TestRouter_DebugIncludesCause(t *testing.T) {
	s := &stubSearcher{err: berrors.RenderError("a.db/t", "1", errors.New("boom"))}
	h := NewRouter(Deps{Searcher: s, Assembler: stubAssembler{}, Logger: quietLogger(), Debug: true})

	rec := get(t, h, "/-/beta")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "boom", body["cause"])
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	h := NewRouter(Deps{Searcher: panicSearcher{}, Assembler: stubAssembler{}, Logger: quietLogger()})

	rec := get(t, h, "/-/beta")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicSearcher struct{}

func (panicSearcher) Search(context.Context, search.Params) (*search.Page, error) {
	panic("unexpected")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New("127.0.0.1:0", NewRouter(Deps{Logger: quietLogger()}))

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}
