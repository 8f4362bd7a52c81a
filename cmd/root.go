package main

import (
	"github.com/spf13/cobra"
)

var (
	cacheRoot  string
	blobRoot   string
	outputJSON bool
	quiet      bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runtimeenv",
		Short: "Runtime environment packager and content-addressed distribution tool",
		Long: `runtimeenv packages a worker's code trees into a content-addressed
archive, publishes it to a shared blob store, and lets workers on the
cluster fetch and unpack it onto their module search path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cacheRoot, "cache", ".runtimeenv-cache", "path to the local package cache root")
	cmd.PersistentFlags().StringVar(&blobRoot, "blob-store", ".runtimeenv-blobs", "path to the filesystem-backed blob store root")
	cmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	return cmd
}
