package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanbeta/configs"
	"github.com/Aman-CERP/amanbeta/internal/config"
	"github.com/Aman-CERP/amanbeta/internal/output"
	"github.com/Aman-CERP/amanbeta/internal/sample"
)

const (
	configFileName  = "amanbeta.yaml"
	mappingFileName = "mapping.yaml"
)

func newInitCmd() *cobra.Command {
	var (
		force      bool
		withSample bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write an example configuration and mapping document",
		Long: `Write amanbeta.yaml and mapping.yaml into dir (default: the current
directory). Existing files are kept unless --force is given, in which case
they are backed up first.

With --sample, also create emails.db and github.db with a few rows so the
example mapping can be indexed and searched straight away.`,
		Example: `  amanbeta init --sample
  amanbeta index beta.db mapping.yaml
  amanbeta search beta.db mapping.yaml things`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force, withSample)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files (a backup is kept)")
	cmd.Flags().BoolVar(&withSample, "sample", false, "Also create sample emails.db and github.db")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force, withSample bool) error {
	out := output.New(cmd.OutOrStdout())

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	for _, f := range []struct {
		name    string
		content string
	}{
		{configFileName, configs.ConfigTemplate},
		{mappingFileName, configs.MappingTemplate},
	} {
		path := filepath.Join(dir, f.name)
		wrote, backup, err := writeTemplate(path, f.content, force)
		if err != nil {
			return err
		}
		switch {
		case !wrote:
			out.Warningf("%s already exists, use --force to overwrite", path)
		case backup != "":
			out.Successf("Wrote %s (backup: %s)", path, backup)
		default:
			out.Successf("Wrote %s", path)
		}
	}

	if withSample {
		if err := sample.Write(cmd.Context(), dir, ""); err != nil {
			return fmt.Errorf("failed to write sample databases: %w", err)
		}
		out.Successf("Wrote %s and %s",
			filepath.Join(dir, sample.EmailsDB), filepath.Join(dir, sample.GitHubDB))
	}

	out.Newline()
	out.Status("", "Next: amanbeta index beta.db mapping.yaml")
	return nil
}

// writeTemplate writes content to path unless it exists and force is unset.
// An overwritten file is backed up first.
func writeTemplate(path, content string, force bool) (wrote bool, backup string, err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		if !force {
			return false, "", nil
		}
		backup, err = config.BackupFile(path)
		if err != nil {
			return false, "", err
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, backup, nil
}
