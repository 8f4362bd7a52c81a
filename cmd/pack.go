package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ray-project/runtimeenv-go/internal/orchestrator"
	"github.com/ray-project/runtimeenv-go/internal/walker"
)

var (
	packWorkingDir string
	packModuleDirs []string
	packIgnoreFile string
)

func newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Compute the package URI for a working directory and module set",
		Long: `pack hashes a working directory plus any additional module
directories and prints the resulting package URI, without publishing
anything to the blob store (see push for that).`,
		RunE: runPack,
	}

	cmd.Flags().StringVarP(&packWorkingDir, "working-dir", "w", "", "working directory to package")
	cmd.Flags().StringArrayVarP(&packModuleDirs, "module", "m", nil, "additional module directory (repeatable)")
	cmd.Flags().StringVarP(&packIgnoreFile, "ignore-file", "i", "", "custom ignore file path, in addition to any .gitignore files discovered")

	return cmd
}

func runPack(cmd *cobra.Command, _ []string) error {
	job := &orchestrator.Job{
		WorkingDir: packWorkingDir,
		ModuleDirs: packModuleDirs,
	}

	if packIgnoreFile != "" {
		m, err := loadIgnoreFile(packIgnoreFile, packWorkingDir)
		if err != nil {
			return fmt.Errorf("load ignore file: %w", err)
		}
		job.Exclude = []walker.Predicate{m}
	}

	if err := orchestrator.RewriteURIs(cmd.Context(), job); err != nil {
		return fmt.Errorf("compute package uri: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"uris": job.URIs})
	}

	if len(job.URIs) == 0 {
		if !quiet {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no package (empty working directory and module set)")
		}
		return nil
	}
	for _, uri := range job.URIs {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), uri)
	}
	return nil
}
