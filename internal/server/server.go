// Package server exposes search over HTTP.
//
//	GET /-/beta?q=...&sort=...&type=...   JSON search response
//	GET /healthz                          liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Aman-CERP/amanbeta/internal/assemble"
	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
	"github.com/Aman-CERP/amanbeta/internal/search"
)

// Searcher runs a query against the index.
type Searcher interface {
	Search(ctx context.Context, p search.Params) (*search.Page, error)
}

// Assembler enriches and renders a page of results.
type Assembler interface {
	Assemble(ctx context.Context, page *search.Page, q string) (*assemble.Response, error)
}

// Deps holds dependencies for the router.
type Deps struct {
	Searcher  Searcher
	Assembler Assembler
	Logger    *slog.Logger

	// Debug includes error causes in error responses.
	Debug bool
}

// NewRouter creates the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	h := &searchHandler{deps: deps}
	r.Get("/-/beta", h.ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

type searchHandler struct {
	deps Deps
}

func (h *searchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := search.ParseParams(r.URL.Query())

	page, err := h.deps.Searcher.Search(ctx, params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp, err := h.deps.Assembler.Assemble(ctx, page, params.Q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// fail writes err as JSON: 400 for errors the caller can fix, 500 otherwise.
func (h *searchHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if berrors.IsUserFacing(err) {
		status = http.StatusBadRequest
	}
	if errors.Is(err, context.Canceled) {
		// client went away
		return
	}
	LoggerFrom(r.Context()).Error("search_request_failed", berrors.LogAttrs(err)...)

	body, jerr := berrors.FormatJSON(err, h.deps.Debug)
	if jerr != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		LoggerFrom(r.Context()).Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// Server is an HTTP server bound to one address.
type Server struct {
	srv *http.Server
}

// New creates a server for handler on addr.
func New(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
