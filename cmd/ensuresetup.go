package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ray-project/runtimeenv-go/internal/orchestrator"
	"github.com/ray-project/runtimeenv-go/internal/searchpath"
)

func newEnsureSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensure-setup <uri> [uri...]",
		Short: "Fetch one or more packages and splice them onto the module search path",
		Long: `ensure-setup fetches each package URI into the local cache (if
not already present) and prepends its unpacked directory onto an
in-process module search path, mirroring how a worker prepares its
import path before running user code. Only the last directory
prepended is reported, matching the one entry point callers need.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runEnsureSetup,
	}

	return cmd
}

func runEnsureSetup(cmd *cobra.Command, args []string) error {
	client, err := openBlobStore()
	if err != nil {
		return err
	}
	localCache := openCache()
	paths := searchpath.New()

	last, err := orchestrator.EnsureSetup(cmd.Context(), args, client, localCache, paths)
	if err != nil {
		return fmt.Errorf("ensure setup: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"dir": last, "searchPath": paths.Snapshot()})
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), last)
	return nil
}
