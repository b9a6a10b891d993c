package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ledgerline %s (commit %s, built %s, %s)\n", version, commit, date, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
