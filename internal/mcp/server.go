package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/amanbeta/internal/assemble"
	"github.com/Aman-CERP/amanbeta/internal/search"
	"github.com/Aman-CERP/amanbeta/internal/store"
	"github.com/Aman-CERP/amanbeta/pkg/version"
)

// ServerName is reported to clients during initialization.
const ServerName = "amanbeta"

// Searcher runs a query against the index.
type Searcher interface {
	Search(ctx context.Context, p search.Params) (*search.Page, error)
}

// Assembler enriches and renders a page of results.
type Assembler interface {
	Assemble(ctx context.Context, page *search.Page, q string) (*assemble.Response, error)
}

// StatsFunc reads the index statistics.
type StatsFunc func(ctx context.Context) (*store.Stats, error)

// Deps holds what the server needs. Stats and MappingPath are optional.
type Deps struct {
	Searcher    Searcher
	Assembler   Assembler
	Stats       StatsFunc
	MappingPath string
	Logger      *slog.Logger
}

// Server is the MCP server. It lets AI clients search the index.
type Server struct {
	mcp         *mcp.Server
	searcher    Searcher
	assembler   Assembler
	stats       StatsFunc
	mappingPath string
	logger      *slog.Logger
}

// NewServer creates a new MCP server.
func NewServer(deps Deps) (*Server, error) {
	if deps.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if deps.Assembler == nil {
		return nil, errors.New("assembler is required")
	}

	s := &Server{
		searcher:    deps.Searcher,
		assembler:   deps.Assembler,
		stats:       deps.Stats,
		mappingPath: deps.MappingPath,
		logger:      deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	if s.mappingPath != "" {
		s.registerMappingResource()
	}
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search every indexed record (emails, commits, notes and whatever else the mapping document defines) with full-text syntax, filters and facet counts. Leave query empty to browse the timeline.",
	}, s.mcpSearchHandler)
	s.logger.Debug("Registered tool", slog.String("name", "search"))

	if s.stats != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        "index_status",
			Description: "Report the record types in the index, how many records each has, and the tokenizer in use.",
		}, s.mcpIndexStatusHandler)
		s.logger.Debug("Registered tool", slog.String("name", "index_status"))
	}
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	input.Sort = strings.TrimSpace(input.Sort)
	if input.Sort != "" && !validSort(input.Sort) {
		return nil, SearchOutput{}, NewInvalidParamsError(
			fmt.Sprintf("unknown sort %q (want relevance, newest or oldest)", input.Sort))
	}

	reqID := generateRequestID()
	log := s.logger.With(slog.String("request_id", reqID))

	params := searchParams(input)
	page, err := s.searcher.Search(ctx, params)
	if err != nil {
		log.Warn("mcp_search_failed", slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}
	resp, err := s.assembler.Assemble(ctx, page, params.Q)
	if err != nil {
		log.Warn("mcp_assemble_failed", slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	out := ToSearchOutput(resp, input.Limit)
	log.Debug("mcp_search",
		slog.String("q", params.Q),
		slog.Int("count", out.Count),
		slog.Int("returned", len(out.Results)))

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(params.Q, out)}},
	}, out, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	st, err := s.stats(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}

	out := IndexStatusOutput{
		Path:      st.Path,
		Tokenizer: st.Tokenizer,
		Total:     st.Total,
		SizeBytes: st.SizeBytes,
		Types:     make([]TypeCountOutput, 0, len(st.Types)),
	}
	for _, tc := range st.Types {
		out.Types = append(out.Types, TypeCountOutput{Type: tc.Type, Count: tc.Count})
	}
	return nil, out, nil
}

// searchParams trims the tool input the way ParseParams trims query values,
// so blank text browses the timeline instead of searching.
func searchParams(input SearchInput) search.Params {
	return search.Params{
		Q:        strings.TrimSpace(input.Query),
		RawSort:  input.Sort,
		Date:     strings.TrimSpace(input.Date),
		Type:     input.Type,
		Category: strings.TrimSpace(input.Category),
		IsPublic: strings.TrimSpace(input.IsPublic),
	}
}

func validSort(s string) bool {
	for _, known := range search.Sorts {
		if s == known {
			return true
		}
	}
	return false
}

// Serve runs the server over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

// generateRequestID creates a request ID for log correlation, in the same
// form the HTTP adapter uses.
func generateRequestID() string {
	return uuid.New().String()
}
