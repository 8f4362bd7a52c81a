package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ray-project/runtimeenv-go/internal/orchestrator"
)

var (
	pushWorkingDir string
	pushModuleDirs []string
	pushURIs       []string
)

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Build and publish a package archive to the blob store",
		Long: `push builds an archive for the given working directory and
module set (computing its URI first if one wasn't supplied), and
uploads it to the blob store unless an object with that name is
already present.`,
		RunE: runPush,
	}

	cmd.Flags().StringVarP(&pushWorkingDir, "working-dir", "w", "", "working directory to package")
	cmd.Flags().StringArrayVarP(&pushModuleDirs, "module", "m", nil, "additional module directory (repeatable)")
	cmd.Flags().StringArrayVar(&pushURIs, "uri", nil, "package URI to push; computed from working-dir/module if omitted")

	return cmd
}

func runPush(cmd *cobra.Command, _ []string) error {
	job := &orchestrator.Job{
		WorkingDir: pushWorkingDir,
		ModuleDirs: pushModuleDirs,
		URIs:       pushURIs,
	}

	if err := orchestrator.RewriteURIs(cmd.Context(), job); err != nil {
		return fmt.Errorf("compute package uri: %w", err)
	}

	client, err := openBlobStore()
	if err != nil {
		return err
	}
	localCache := openCache()

	uploaded, err := orchestrator.UploadIfMissing(cmd.Context(), job, client, localCache)
	if err != nil {
		return fmt.Errorf("push package: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"uris":          job.URIs,
			"uploadedBytes": uploaded,
		})
	}

	if !quiet {
		if uploaded == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "already present in blob store")
		} else {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pushed %d bytes\n", uploaded)
		}
	}
	for _, uri := range job.URIs {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), uri)
	}
	return nil
}
