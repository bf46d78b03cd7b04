package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanbeta/internal/config"
	"github.com/Aman-CERP/amanbeta/internal/indexer"
	"github.com/Aman-CERP/amanbeta/internal/mapping"
	"github.com/Aman-CERP/amanbeta/internal/ui"
)

type indexOptions struct {
	tokenize  string
	databases []string
	sourceDir string
	noTUI     bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [index-db] [mapping]",
		Short: "Index source databases described by a mapping document",
		Long: `Run every rule of the mapping document against its source database and
upsert the rows into the index database, creating it if needed.

Rows are identified by type and key, so indexing again replaces changed rows
and leaves everything else alone. The index and mapping paths default to
index.path and mapping.path from the configuration.

Use -d to index only some sources. Use --tokenize none to create the
full-text table without the porter stemmer.`,
		Example: `  amanbeta index beta.db mapping.yaml
  amanbeta index beta.db mapping.yaml -d emails.db --tokenize none`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Ctrl+C cancels between rules
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("tokenize") {
				if !config.IsValidTokenizer(opts.tokenize) {
					return fmt.Errorf("unknown tokenizer %q (want one of %v)", opts.tokenize, config.ValidTokenizers)
				}
				cfg.Index.Tokenizer = opts.tokenize
			}
			if opts.sourceDir != "" {
				cfg.Index.SourceDir = opts.sourceDir
			}

			indexPath, mappingPath := indexAndMapping(cfg, args)
			return runIndex(ctx, cmd, cfg, indexPath, mappingPath, opts)
		},
	}

	cmd.Flags().StringVar(&opts.tokenize, "tokenize", "porter",
		"Full-text tokenizer for a new index: porter, unicode61, ascii, trigram or none")
	cmd.Flags().StringArrayVarP(&opts.databases, "database", "d", nil,
		"Only index this source (repeatable); matches the id, file name or path")
	cmd.Flags().StringVar(&opts.sourceDir, "source-dir", "",
		"Directory relative source ids are resolved against")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")

	cmd.AddCommand(newIndexInfoCmd())

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, cfg *config.Config, indexPath, mappingPath string, opts indexOptions) error {
	rules, err := mapping.Load(mappingPath)
	if err != nil {
		return err
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithTitle(indexPath)))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}

	_, runErr := indexer.Run(ctx, indexPath, rules, indexer.Options{
		Tokenizer: cfg.Index.Tokenizer,
		Sources:   opts.databases,
		SourceDir: cfg.Index.SourceDir,
		Driver:    cfg.Index.Driver,
		Renderer:  renderer,
		Logger:    slog.Default(),
	})
	if err := renderer.Stop(); err != nil {
		slog.Debug("progress display stop failed", slog.String("error", err.Error()))
	}
	return runErr
}
