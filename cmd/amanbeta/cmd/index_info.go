package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
	"github.com/Aman-CERP/amanbeta/internal/mapping"
	"github.com/Aman-CERP/amanbeta/internal/store"
	"github.com/Aman-CERP/amanbeta/internal/ui"
)

func newIndexInfoCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info [index-db] [mapping]",
		Short: "Show record counts and the tokenizer of an index",
		Long: `Display the number of indexed records per type, the full-text tokenizer and
the index size. When the mapping document can be read, types without a rule
in it are listed, since their results render as raw JSON.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			indexPath, mappingPath := indexAndMapping(cfg, args)
			return runIndexInfo(cmd, indexPath, mappingPath, cfg.Index.Driver, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func runIndexInfo(cmd *cobra.Command, indexPath, mappingPath, driver string, jsonOutput bool) error {
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return berrors.New(berrors.ErrCodeFileNotFound, fmt.Sprintf("no index found at %s", indexPath), err).
			WithSuggestion(fmt.Sprintf("Run 'amanbeta index %s <mapping>' to create one", indexPath))
	}

	db, err := store.Open(indexPath, store.ReadOnly(), store.WithDriver(driver))
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer db.Close()

	stats, err := store.IndexStats(cmd.Context(), db, indexPath)
	if err != nil {
		return err
	}

	info := ui.IndexInfo{
		Path:      stats.Path,
		Tokenizer: stats.Tokenizer,
		Total:     stats.Total,
		SizeBytes: stats.SizeBytes,
		Types:     make([]ui.TypeCount, 0, len(stats.Types)),
	}
	rules, mapErr := mapping.Load(mappingPath)
	for _, tc := range stats.Types {
		info.Types = append(info.Types, ui.TypeCount{Type: tc.Type, Count: tc.Count})
		if mapErr == nil {
			if _, ok := rules.Lookup(tc.Type); !ok {
				info.Unmapped = append(info.Unmapped, tc.Type)
			}
		}
	}

	r := ui.NewInfoRenderer(cmd.OutOrStdout(), !ui.IsTTY(cmd.OutOrStdout()))
	if jsonOutput {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}
