package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanbeta/internal/mcp"
	"github.com/Aman-CERP/amanbeta/internal/store"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp [index-db] [mapping]",
		Short: "Run an MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout so AI clients can search
the index. It offers a search tool, an index_status tool, and the mapping
document as a resource. Logs go to ~/.amanbeta/logs/ since stdout carries
the protocol.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := useLogLevel(cfg.Server.LogLevel, true); err != nil {
				return err
			}
			indexPath, mappingPath := indexAndMapping(cfg, args)

			stack, err := openQueryStack(cfg, indexPath, mappingPath)
			if err != nil {
				return err
			}
			defer stack.Close()

			srv, err := mcp.NewServer(mcp.Deps{
				Searcher:  stack.engine,
				Assembler: stack.assembler,
				Stats: func(ctx context.Context) (*store.Stats, error) {
					return stack.engine.Stats(ctx, indexPath)
				},
				MappingPath: mappingPath,
			})
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}
	return cmd
}
