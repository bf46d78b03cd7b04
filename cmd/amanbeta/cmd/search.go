package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanbeta/internal/output"
	"github.com/Aman-CERP/amanbeta/internal/search"
)

type searchOptions struct {
	sort     string
	typ      string
	category string
	public   string
	date     string
	format   string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <index-db> <mapping> [query...]",
		Short: "Search the index",
		Long: `Search the index and print rendered results with facet counts.

The query supports full-text syntax: phrases in double quotes, AND, OR, NOT
and prefix*. A query that is not valid syntax is searched for literally.
Without a query, results are listed newest first.`,
		Example: `  amanbeta search beta.db mapping.yaml things
  amanbeta search beta.db mapping.yaml 'things NOT email' --type emails.db/emails
  amanbeta search beta.db mapping.yaml --sort oldest --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], args[1], strings.Join(args[2:], " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.sort, "sort", "", "Sort order: relevance, newest or oldest")
	cmd.Flags().StringVar(&opts.typ, "type", "", "Only records of this type, e.g. emails.db/emails")
	cmd.Flags().StringVar(&opts.category, "category", "", "Only records of this category id")
	cmd.Flags().StringVar(&opts.public, "public", "", "Only public (1) or private (0) records")
	cmd.Flags().StringVar(&opts.date, "date", "", "Only records from this day, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")

	return cmd
}

func runSearch(cmd *cobra.Command, indexPath, mappingPath, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", opts.format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stack, err := openQueryStack(cfg, indexPath, mappingPath)
	if err != nil {
		return err
	}
	defer stack.Close()

	params := search.Params{
		Q:        strings.TrimSpace(query),
		RawSort:  opts.sort,
		Date:     opts.date,
		Type:     opts.typ,
		Category: opts.category,
		IsPublic: opts.public,
	}
	ctx := cmd.Context()
	page, err := stack.engine.Search(ctx, params)
	if err != nil {
		return err
	}
	resp, err := stack.assembler.Assemble(ctx, page, params.Q)
	if err != nil {
		return err
	}

	w := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return w.JSON(resp)
	}
	w.Results(resp)
	return nil
}
