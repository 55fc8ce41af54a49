package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "icloudmirror",
		Short:   "Mirror an iCloud-style photo library into a local dual-path tree",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newSyncCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
