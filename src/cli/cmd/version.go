package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/dockwright/src/build"
	"github.com/sofmeright/dockwright/src/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
		fmt.Fprintf(cmd.OutOrStdout(), "executors: %v\n", build.Executors())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
