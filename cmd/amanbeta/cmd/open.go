package cmd

import (
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/amanbeta/internal/assemble"
	"github.com/Aman-CERP/amanbeta/internal/config"
	"github.com/Aman-CERP/amanbeta/internal/mapping"
	"github.com/Aman-CERP/amanbeta/internal/render"
	"github.com/Aman-CERP/amanbeta/internal/search"
)

// queryStack is what a query needs: the engine over the index and an
// assembler that reloads the mapping document on every call.
type queryStack struct {
	engine    *search.Engine
	assembler *assemble.Assembler
}

func openQueryStack(cfg *config.Config, indexPath, mappingPath string) (*queryStack, error) {
	// fail early on a broken mapping document; it is reloaded per request
	if _, err := mapping.Load(mappingPath); err != nil {
		return nil, err
	}

	engine, err := search.Open(indexPath, cfg.Index.Driver, search.WithLogger(slog.Default()))
	if err != nil {
		return nil, err
	}

	renderer, err := render.New(cfg.Search.TemplateCacheSize)
	if err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	asm, err := assemble.New(nil,
		assemble.WithMappingPath(mappingPath),
		assemble.WithRenderer(renderer),
		assemble.WithSourceDir(cfg.Index.SourceDir),
		assemble.WithDriver(cfg.Index.Driver),
		assemble.WithWorkers(cfg.Search.EnrichWorkers),
		assemble.WithDebug(cfg.Server.Debug),
		assemble.WithLogger(slog.Default()))
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return &queryStack{engine: engine, assembler: asm}, nil
}

func (q *queryStack) Close() error {
	aerr := q.assembler.Close()
	if err := q.engine.Close(); err != nil {
		return err
	}
	return aerr
}
