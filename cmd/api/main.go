package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "beautyboosters",
		Short:         "Booster assignment and payment lifecycle engine",
		Version:       Version + " (" + CommitSHA + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSweepCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newNotifyCmd())
	root.AddCommand(newTokenCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
