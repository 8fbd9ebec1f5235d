package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/dockwright/src/config"
)

var (
	ciFormat string
	ciOutput string
	ciForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the dockwright config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var w io.Writer = cmd.OutOrStdout()
		if ciOutput != "" && ciOutput != "-" {
			flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if ciForce {
				flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			f, err := os.OpenFile(ciOutput, flags, 0o644)
			if err != nil {
				return fmt.Errorf("creating %s: %w", ciOutput, err)
			}
			defer f.Close()
			w = f
		}
		return config.WriteExample(w, ciFormat)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Loading and validation already ran in the root pre-run.
		path := cfg.Path()
		if path == "" {
			path = "(defaults)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&ciFormat, "format", "yaml", "yaml or toml")
	configInitCmd.Flags().StringVarP(&ciOutput, "output", "o", "", "file to write (default: stdout)")
	configInitCmd.Flags().BoolVar(&ciForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
