package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <uri>",
		Short: "Fetch and unpack a single package into the local cache",
		Long: `fetch pulls the archive for a package URI from the blob store
into the local cache and unpacks it, printing the resulting directory.
If the package is already cached, no network or blob-store access
occurs.`,
		Args: cobra.ExactArgs(1),
		RunE: runFetch,
	}

	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	uri := args[0]

	client, err := openBlobStore()
	if err != nil {
		return err
	}
	localCache := openCache()

	dir, err := localCache.Fetch(cmd.Context(), uri, client)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"uri": uri, "dir": dir})
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}
