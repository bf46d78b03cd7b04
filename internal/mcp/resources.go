package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MappingURI is the resource URI of the mapping document.
const MappingURI = "beta://mapping"

// MaxResourceSize is the maximum mapping document size served (1MB).
const MaxResourceSize = 1024 * 1024

// registerMappingResource exposes the mapping document so clients can see
// which record types exist and how they render.
func (s *Server) registerMappingResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "mapping",
			URI:         MappingURI,
			Description: fmt.Sprintf("Mapping document (%s)", s.mappingPath),
			MIMEType:    "application/yaml",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readMapping(ctx)
		},
	)
}

func (s *Server) readMapping(_ context.Context) (*mcp.ReadResourceResult, error) {
	info, err := os.Stat(s.mappingPath)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(MappingURI)
	}
	if info.Size() > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeInternalError,
			Message: fmt.Sprintf("mapping document too large: %d bytes (max %d)", info.Size(), MaxResourceSize),
		}
	}

	content, err := os.ReadFile(s.mappingPath)
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      MappingURI,
			MIMEType: "application/yaml",
			Text:     string(content),
		}},
	}, nil
}
