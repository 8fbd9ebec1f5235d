package cmd

import (
	"errors"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/dockwright/src/build"
	_ "github.com/sofmeright/dockwright/src/build/executors"
	"github.com/sofmeright/dockwright/src/config"
	"github.com/sofmeright/dockwright/src/output"
	"github.com/sofmeright/dockwright/src/pipeline"
	"github.com/sofmeright/dockwright/src/registry"
	"github.com/sofmeright/dockwright/src/source"
	"github.com/sofmeright/dockwright/src/version"
)

var (
	bAppName     string
	bAppVersion  string
	bTagStrategy string
	bPlatforms   []string
	bMultiArch   bool
	bContext     string
	bDockerfile  string
	bUniqueID    string
	bBuildArgs   string
	bNoCache     bool
	bCacheTTL    time.Duration
	bRegistry    string
	bProject     string
	bExecutor    string
	bTimeout     time.Duration
	bMaxParallel int
	bWorkDir     string
	bDryRun      bool
	bKeepWorkDir bool
	bNoPush      bool
	bInsecure    bool
	bReportDir   string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build an image for every platform and publish manifest lists",
	Long: `Build a container image once per target platform, in parallel, then
publish "{tag}" and "latest" manifest lists referencing every platform image.

The source comes from an uploaded archive (build upload) or a git
reference (build git). Flags override the config file.`,
}

func init() {
	pf := buildCmd.PersistentFlags()
	pf.StringVar(&bAppName, "app-name", "", "application name (image repository name)")
	pf.StringVar(&bAppVersion, "app-version", "", "application version (default: exact git tag of the source)")
	pf.StringVar(&bTagStrategy, "tag-strategy", "", "version-build, timestamp, latest or git-commit")
	pf.StringSliceVar(&bPlatforms, "platforms", nil, "target platforms (comma-separated os/arch[/variant])")
	pf.BoolVar(&bMultiArch, "multi-arch", false, "shortcut for --platforms "+strings.Join(config.MultiArchPlatforms, ","))
	pf.StringVar(&bContext, "context", ".", "build context, relative to the source root")
	pf.StringVar(&bDockerfile, "dockerfile", "Dockerfile", "Dockerfile, relative to the build context")
	pf.StringVar(&bUniqueID, "unique-id", "", "build id (default: generated)")
	pf.StringVar(&bBuildArgs, "build-args", "", "build arguments as KEY=VALUE,KEY=VALUE")
	pf.BoolVar(&bNoCache, "no-cache", false, "disable the layer cache")
	pf.DurationVar(&bCacheTTL, "cache-ttl", 0, "layer cache TTL")
	pf.StringVar(&bRegistry, "registry", "", "registry host")
	pf.StringVar(&bProject, "project", "", "registry project")
	pf.StringVar(&bExecutor, "executor", "", "build tool: "+strings.Join(build.Executors(), ", "))
	pf.DurationVar(&bTimeout, "timeout", 0, "per-platform build timeout")
	pf.IntVar(&bMaxParallel, "max-parallel", 0, "maximum concurrent platform builds (0 = all)")
	pf.StringVar(&bWorkDir, "workdir", "", "scratch directory (default: system temp)")
	pf.BoolVar(&bDryRun, "dry-run", false, "show the plan without executing")
	pf.BoolVar(&bKeepWorkDir, "keep-workdir", false, "leave extracted sources and build contexts in place")
	pf.BoolVar(&bNoPush, "no-push", false, "build without pushing (skips manifest lists)")
	pf.BoolVar(&bInsecure, "insecure", false, "use plain HTTP and skip TLS verification")
	pf.StringVar(&bReportDir, "report-dir", "", "write a JUnit report of the build to this directory")

	rootCmd.AddCommand(buildCmd)
}

// applyBuildFlags overrides config values with the flags the user set.
func applyBuildFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	if bMultiArch && f.Changed("platforms") {
		return errors.New("--multi-arch and --platforms are mutually exclusive")
	}
	if f.Changed("registry") {
		c.Registry.URL = bRegistry
	}
	if f.Changed("project") {
		c.Registry.Project = bProject
	}
	if f.Changed("insecure") {
		c.Registry.Insecure = bInsecure
	}
	if f.Changed("executor") {
		c.Build.Executor = bExecutor
	}
	if f.Changed("tag-strategy") {
		c.Build.TagStrategy = bTagStrategy
	}
	if f.Changed("platforms") {
		c.Build.Platforms = config.StringList(bPlatforms)
	}
	if bMultiArch {
		c.Build.Platforms = config.StringList(slices.Clone(config.MultiArchPlatforms))
	}
	if f.Changed("no-cache") {
		c.Build.Cache = !bNoCache
	}
	if f.Changed("cache-ttl") {
		c.Build.CacheTTL = config.Duration(bCacheTTL)
	}
	if f.Changed("timeout") {
		c.Build.Timeout = config.Duration(bTimeout)
	}
	if f.Changed("max-parallel") {
		c.Build.MaxParallel = bMaxParallel
	}
	if f.Changed("workdir") {
		c.Build.WorkDir = bWorkDir
	}
	if f.Changed("keep-workdir") {
		c.Build.KeepWorkDir = bKeepWorkDir
	}
	if f.Changed("no-push") {
		c.Build.Push = !bNoPush
	}
	return nil
}

// runBuild executes the pipeline for the given source and renders the result.
func runBuild(cmd *cobra.Command, resolver source.Resolver) error {
	c := *cfg
	if err := applyBuildFlags(cmd, &c); err != nil {
		return err
	}
	if _, err := config.Validate(&c); err != nil {
		return err
	}

	exec, err := build.GetExecutor(c.Build.Executor, build.ExecutorOptions{
		Path:      c.Build.ExecutorPath,
		ExtraArgs: c.Build.ExtraArgs,
	})
	if err != nil {
		return err
	}

	var reg registry.Registry
	if c.Build.Push && !bDryRun {
		reg, err = registry.NewRegistry(registry.Options{
			Provider:         c.Registry.Provider,
			URL:              c.Registry.URL,
			CredentialPrefix: c.Registry.Credentials,
			Insecure:         c.Registry.Insecure,
			Lookup:           c.Registry.Lookup,
		})
		if err != nil {
			return err
		}
	}

	p := &pipeline.Pipeline{
		Worker: &build.Worker{
			Executor:  exec,
			Timeout:   c.Build.Timeout.Std(),
			Push:      c.Build.Push,
			Insecure:  c.Registry.Insecure,
			CacheRepo: c.Build.CacheRepo,
			Log:       logger,
		},
		Registry:    reg,
		WorkDir:     c.Build.WorkDir,
		MaxParallel: c.Build.MaxParallel,
		Isolate:     c.Build.IsolateContext,
		CancelGrace: c.Build.CancelGrace.Std(),
		KeepWorkDir: c.Build.KeepWorkDir,
		DryRun:      bDryRun,
		Log:         logger,
	}
	in := pipeline.Input{
		Source:      resolver,
		AppName:     bAppName,
		AppVersion:  bAppVersion,
		TagStrategy: c.Build.TagStrategy,
		Platforms:   c.Build.EffectivePlatforms(),
		ContextPath: bContext,
		Dockerfile:  bDockerfile,
		UniqueID:    bUniqueID,
		BuildArgs:   bBuildArgs,
		Cache:       c.Build.Cache,
		CacheTTL:    c.Build.CacheTTL.Std(),
		Registry:    c.Registry.URL,
		Project:     c.Registry.Project,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := cmd.OutOrStdout()
	color := output.UseColor()
	output.Header(w, version.String(), color)

	output.SectionStartCollapsed(w, "dw_build", "Platform builds")
	rep, err := p.Run(ctx, in)
	output.SectionEnd(w, "dw_build")

	output.RequestBlock(w, rep)
	output.Warnings(w, rep.Warnings, color)
	if bDryRun && err == nil {
		output.Stages(w, rep.Stages, color)
		output.Plan(w, rep.Plan, exec, color)
		return nil
	}
	output.Summary(w, rep, color)
	for _, dir := range rep.Kept {
		logger.WithField("dir", dir).Info("kept scratch directory")
	}

	if bReportDir != "" {
		if jerr := output.WriteBuildJUnit(bReportDir, rep); jerr != nil {
			logger.WithError(jerr).Warn("writing junit report")
		}
	}

	// Images exist but the unified references do not.
	if err != nil && rep.Build != nil && rep.Build.Outcome == build.Success {
		return &exitError{code: 2, err: err}
	}
	return err
}
