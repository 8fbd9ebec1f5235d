package executors

import (
	"context"
	"fmt"
	"sort"

	"github.com/sofmeright/dockwright/src/build"
)

func init() {
	build.RegisterExecutor("buildx", func(opts build.ExecutorOptions) build.Executor { return NewBuildx(opts) })
}

// Buildx wraps docker buildx for hosts that have a daemon instead of Kaniko.
type Buildx struct {
	Path      string
	ExtraArgs []string
}

// NewBuildx creates a Buildx runner. An empty path means "docker" from PATH.
func NewBuildx(opts build.ExecutorOptions) *Buildx {
	path := opts.Path
	if path == "" {
		path = "docker"
	}
	return &Buildx{Path: path, ExtraArgs: opts.ExtraArgs}
}

func (bx *Buildx) Name() string { return "buildx" }

// Run executes a single platform build via docker buildx.
func (bx *Buildx) Run(ctx context.Context, inv build.Invocation) (*build.ExecResult, error) {
	out, err := build.RunTool(ctx, bx.Path, bx.args(inv), inv.Log)
	return &build.ExecResult{Output: out, Steps: build.ParseBuildxOutput(out)}, err
}

func (bx *Buildx) CommandLine(inv build.Invocation) []string {
	return append([]string{bx.Path}, bx.args(inv)...)
}

// args constructs the docker buildx build argument list.
func (bx *Buildx) args(inv build.Invocation) []string {
	args := []string{"buildx", "build", "--progress=plain"}

	args = append(args, "--file", inv.Dockerfile)
	args = append(args, "--platform", inv.Platform.ID)

	keys := make([]string, 0, len(inv.BuildArgs))
	for k := range inv.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, inv.BuildArgs[k]))
	}

	for _, tag := range inv.Destinations {
		args = append(args, "--tag", tag)
	}

	if !inv.Cache {
		args = append(args, "--no-cache")
	} else if inv.CacheRepo != "" {
		args = append(args,
			"--cache-from", "type=registry,ref="+inv.CacheRepo,
			"--cache-to", "type=registry,ref="+inv.CacheRepo+",mode=max",
		)
	}

	if inv.Push {
		args = append(args, "--push")
	} else {
		args = append(args, "--load")
	}

	args = append(args, bx.ExtraArgs...)
	return append(args, inv.Context)
}
