package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// main wires high-level dependencies and hands off to cobra. Business logic
// lives in internal/inventory.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "stash",
		Short:         "Inventory reservation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("STASH_CONFIG"), "path to a YAML config file")

	root.AddCommand(newServeCmd(&configPath), newSweepCmd(&configPath))
	return root
}
