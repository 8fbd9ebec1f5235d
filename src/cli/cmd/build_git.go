package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sofmeright/dockwright/src/source"
)

var (
	gitURL         string
	gitRef         string
	gitDepth       int
	gitCredentials string
)

var buildGitCmd = &cobra.Command{
	Use:   "git",
	Short: "Build from a git repository reference",
	Long: `Clone --url at --ref (a branch or a tag) and build it.

Credentials are read from <PREFIX>_USER and <PREFIX>_PASS, where the prefix
comes from --git-credentials or source.credentials in the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := &source.Git{
			URL:              gitURL,
			Ref:              gitRef,
			CredentialPrefix: cfg.Source.Credentials,
			Depth:            cfg.Source.Depth,
		}
		if cmd.Flags().Changed("git-credentials") {
			g.CredentialPrefix = gitCredentials
		}
		if cmd.Flags().Changed("depth") {
			g.Depth = gitDepth
		}
		return runBuild(cmd, g)
	},
}

func init() {
	buildGitCmd.Flags().StringVar(&gitURL, "url", "", "repository URL")
	buildGitCmd.Flags().StringVar(&gitRef, "ref", "", "branch or tag (default: remote HEAD)")
	buildGitCmd.Flags().IntVar(&gitDepth, "depth", 0, "clone depth (0 = 1, negative = full history)")
	buildGitCmd.Flags().StringVar(&gitCredentials, "git-credentials", "", "env var prefix for clone credentials")
	_ = buildGitCmd.MarkFlagRequired("url")

	buildCmd.AddCommand(buildGitCmd)
}
