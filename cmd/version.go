package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spigell/interview-conductor/internal/checkpoint"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the checkpoint format it reads",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s (checkpoint format %d)\n", app, version, checkpoint.Format)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
