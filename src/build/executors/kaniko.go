// Package executors holds the build-tool backends. Each registers itself with
// the build package from init().
package executors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sofmeright/dockwright/src/build"
)

const defaultKanikoPath = "/kaniko/executor"

func init() {
	build.RegisterExecutor("kaniko", func(opts build.ExecutorOptions) build.Executor { return NewKaniko(opts) })
}

// Kaniko drives the Kaniko executor binary. Kaniko builds and pushes in one
// step and only pushes once every layer is built, so an aborted run never
// leaves a destination tag behind.
type Kaniko struct {
	Path      string
	ExtraArgs []string
}

// NewKaniko creates a Kaniko runner. An empty path means /kaniko/executor.
func NewKaniko(opts build.ExecutorOptions) *Kaniko {
	path := opts.Path
	if path == "" {
		path = defaultKanikoPath
	}
	return &Kaniko{Path: path, ExtraArgs: opts.ExtraArgs}
}

func (k *Kaniko) Name() string { return "kaniko" }

// Run executes a single platform build.
func (k *Kaniko) Run(ctx context.Context, inv build.Invocation) (*build.ExecResult, error) {
	digestDir, err := os.MkdirTemp("", "kaniko-digest-*")
	if err != nil {
		return &build.ExecResult{}, fmt.Errorf("creating digest dir: %w", err)
	}
	defer os.RemoveAll(digestDir)
	digestFile := filepath.Join(digestDir, "digest")

	out, runErr := build.RunTool(ctx, k.Path, k.args(inv, digestFile), inv.Log)
	steps, digest := build.ParseKanikoOutput(out)
	if data, err := os.ReadFile(digestFile); err == nil && len(strings.TrimSpace(string(data))) > 0 {
		digest = strings.TrimSpace(string(data))
	}

	return &build.ExecResult{Output: out, Digest: digest, Steps: steps}, runErr
}

// CommandLine returns the executor argv for inv. The digest file is a
// placeholder since it only exists during Run.
func (k *Kaniko) CommandLine(inv build.Invocation) []string {
	return append([]string{k.Path}, k.args(inv, "<digest-file>")...)
}

// args constructs the executor argument list.
func (k *Kaniko) args(inv build.Invocation, digestFile string) []string {
	args := []string{
		"--dockerfile=" + inv.Dockerfile,
		"--context=dir://" + inv.Context,
		"--custom-platform=" + inv.Platform.ID,
	}

	for _, dest := range inv.Destinations {
		args = append(args, "--destination="+dest)
	}

	// Sorted so identical requests produce identical command lines.
	keys := make([]string, 0, len(inv.BuildArgs))
	for key := range inv.BuildArgs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, fmt.Sprintf("--build-arg=%s=%s", key, inv.BuildArgs[key]))
	}

	if inv.Cache {
		args = append(args, "--cache=true")
		if inv.CacheTTL > 0 {
			args = append(args, "--cache-ttl="+inv.CacheTTL.String())
		}
		if inv.CacheRepo != "" {
			args = append(args, "--cache-repo="+inv.CacheRepo)
		}
	}

	if !inv.Push {
		args = append(args, "--no-push")
	} else {
		args = append(args, "--digest-file="+digestFile)
	}

	if inv.Insecure {
		args = append(args, "--insecure", "--skip-tls-verify")
	}

	return append(args, k.ExtraArgs...)
}
