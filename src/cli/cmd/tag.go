package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/sofmeright/dockwright/src/build"
	"github.com/sofmeright/dockwright/src/gitver"
)

var (
	tagVersion   string
	tagStrategy  string
	tagRevision  string
	tagPlatforms []string
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Show the tags a build would produce",
	Long: `Resolve the version tag for a strategy and list the per-platform and
unified tags without building anything.

The revision defaults to HEAD of the git repository in the working directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy := cfg.Build.TagStrategy
		if cmd.Flags().Changed("tag-strategy") {
			strategy = tagStrategy
		}
		s, err := build.ParseTagStrategy(strategy)
		if err != nil {
			return err
		}

		version := tagVersion
		rev := tagRevision
		if info, err := gitver.DetectVersion("."); err == nil {
			if rev == "" {
				rev = info.SHA
			}
			if version == "" {
				version = info.Version
			}
		} else if !errors.Is(err, gitver.ErrNotRepository) {
			logger.WithError(err).Debug("reading git metadata")
		}
		if version == "" {
			return errors.New("--app-version is required outside a tagged git checkout")
		}

		platforms := cfg.Build.EffectivePlatforms()
		if cmd.Flags().Changed("platforms") {
			platforms = tagPlatforms
		}
		plats, err := build.ParsePlatforms(platforms)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		tag := build.ResolveTag(s, version, rev, time.Now())
		fmt.Fprintf(w, "tag:      %s\n", tag)
		if v, err := semver.NewVersion(version); err == nil {
			fmt.Fprintf(w, "semver:   major=%d minor=%d patch=%d", v.Major(), v.Minor(), v.Patch())
			if v.Prerelease() != "" {
				fmt.Fprintf(w, " prerelease=%s", v.Prerelease())
			}
			fmt.Fprintln(w)
		}
		for _, p := range plats {
			fmt.Fprintf(w, "%-9s %v\n", p.ID+":", build.ArchTags(tag, p))
		}
		if tag == build.LatestTag {
			fmt.Fprintf(w, "unified:  [%s]\n", build.LatestTag)
		} else {
			fmt.Fprintf(w, "unified:  [%s %s]\n", tag, build.LatestTag)
		}
		return nil
	},
}

func init() {
	tagCmd.Flags().StringVar(&tagVersion, "app-version", "", "application version (default: exact git tag)")
	tagCmd.Flags().StringVar(&tagStrategy, "tag-strategy", "", "version-build, timestamp, latest or git-commit")
	tagCmd.Flags().StringVar(&tagRevision, "revision", "", "VCS revision (default: git HEAD)")
	tagCmd.Flags().StringSliceVar(&tagPlatforms, "platforms", nil, "target platforms")

	rootCmd.AddCommand(tagCmd)
}
