package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanbeta/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [index-db] [mapping]",
		Short: "Serve search results as JSON over HTTP",
		Long: `Start an HTTP server answering GET /-/beta with the JSON search response.

Request parameters: q, sort, type, category, is_public and timestamp__date.
The mapping document is read again for every request, so edits to display
templates show up without a restart.`,
		Example: `  amanbeta serve beta.db mapping.yaml --addr 127.0.0.1:8001
  curl '127.0.0.1:8001/-/beta?q=things&type=emails.db/emails'`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := useLogLevel(cfg.Server.LogLevel, false); err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			indexPath, mappingPath := indexAndMapping(cfg, args)

			stack, err := openQueryStack(cfg, indexPath, mappingPath)
			if err != nil {
				return err
			}
			defer stack.Close()

			handler := server.NewRouter(server.Deps{
				Searcher:  stack.engine,
				Assembler: stack.assembler,
				Logger:    slog.Default(),
				Debug:     cfg.Server.Debug,
			})

			_, _ = cmd.OutOrStdout().Write([]byte("Serving " + indexPath + " on http://" + cfg.Server.Addr + "/-/beta\n"))
			slog.Info("http_server_start",
				slog.String("addr", cfg.Server.Addr),
				slog.String("index", indexPath),
				slog.String("mapping", mappingPath))
			return server.New(cfg.Server.Addr, handler).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.addr)")

	return cmd
}
