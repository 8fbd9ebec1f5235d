package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/dockwright/src/registry"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect published manifest lists",
}

var manifestInspectCmd = &cobra.Command{
	Use:   "inspect <reference>",
	Short: "List the platforms of a manifest list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.NewRegistry(registry.Options{
			Provider:         cfg.Registry.Provider,
			URL:              cfg.Registry.URL,
			CredentialPrefix: cfg.Registry.Credentials,
			Insecure:         cfg.Registry.Insecure,
			Lookup:           cfg.Registry.Lookup,
		})
		if err != nil {
			return err
		}

		entries, err := reg.Platforms(cmd.Context(), args[0])
		if err != nil {
			return &exitError{code: 2, err: err}
		}
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, args[0])
		for _, e := range entries {
			fmt.Fprintf(w, "  %-16s %s  %d bytes\n", e.Platform, e.Digest, e.Size)
		}
		return nil
	},
}

func init() {
	manifestCmd.AddCommand(manifestInspectCmd)
	rootCmd.AddCommand(manifestCmd)
}
