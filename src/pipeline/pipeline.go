// Package pipeline runs a build request end to end: resolve the source, build
// every platform concurrently, then publish the multi-architecture lists.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/dockwright/src/build"
	"github.com/sofmeright/dockwright/src/manifest"
	"github.com/sofmeright/dockwright/src/registry"
	"github.com/sofmeright/dockwright/src/source"
)

// Input is a build request as received from the command line.
type Input struct {
	Source source.Resolver

	AppName string
	// AppVersion defaults to the version of an exact git tag on the source.
	AppVersion  string
	TagStrategy string
	Platforms   []string
	ContextPath string
	Dockerfile  string
	UniqueID    string
	BuildArgs   string

	Cache    bool
	CacheTTL time.Duration

	Registry string
	Project  string

	Now time.Time
}

// Pipeline holds the settings shared by every run.
type Pipeline struct {
	Worker *build.Worker
	// Registry publishes the manifest lists. Nil, or a worker that does not
	// push, skips composition.
	Registry    registry.Registry
	WorkDir     string
	MaxParallel int
	Isolate     bool
	CancelGrace time.Duration
	KeepWorkDir bool
	// DryRun stops after planning and reports the invocations instead.
	DryRun bool
	Log    logrus.FieldLogger
}

// Report describes one pipeline run. It is returned on failure too, filled
// as far as the run got.
type Report struct {
	Request  *build.Request
	Origin   string
	Warnings []string
	Plan     []build.Invocation
	Stages   []build.Stage // Dockerfile stages, filled on dry runs
	Build    *CoordinatorResult
	Lists    []manifest.List
	Kept     []string // scratch directories left in place
	Duration time.Duration
}

// Outcome is Success only when every platform built and every list was published.
func (r *Report) Outcome() build.Outcome {
	if r.Build == nil || r.Build.Outcome != build.Success {
		return build.Failure
	}
	for _, l := range r.Lists {
		if !l.Published() {
			return build.Failure
		}
	}
	return build.Success
}

// Run executes in. Validation failures return before any worker starts.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Report, error) {
	start := time.Now()
	rep := &Report{}
	defer func() { rep.Duration = time.Since(start) }()
	log := p.logger()

	if p.Worker == nil {
		return rep, errors.New("pipeline: no worker configured")
	}
	if in.Source == nil {
		return rep, build.Errorf(build.KindInvalidRequest, "no source given")
	}

	tree, err := in.Source.Resolve(ctx, p.WorkDir)
	if err != nil {
		return rep, err
	}
	rep.Origin = tree.Origin
	defer func() {
		// Abandoned workers may still be reading the tree.
		if rep.Build != nil && len(rep.Build.Abandoned) > 0 {
			rep.Kept = append(rep.Kept, tree.Root)
			log.WithField("dir", tree.Root).Warn("builds still running; leaving source tree in place")
			return
		}
		p.release(rep, tree.Root, tree.Cleanup)
	}()
	log.WithField("source", tree.Origin).Info("source resolved")

	version := in.AppVersion
	if version == "" {
		version = tree.Version
	}
	req, warnings, err := build.NewRequest(build.RequestInput{
		AppName:      in.AppName,
		AppVersion:   version,
		TagStrategy:  in.TagStrategy,
		Platforms:    in.Platforms,
		SourceRoot:   tree.Root,
		ContextPath:  in.ContextPath,
		Dockerfile:   in.Dockerfile,
		UniqueID:     in.UniqueID,
		BuildArgs:    in.BuildArgs,
		Revision:     tree.Revision,
		CacheEnabled: in.Cache,
		CacheTTL:     in.CacheTTL,
		Registry:     in.Registry,
		Project:      in.Project,
		Now:          in.Now,
	})
	rep.Warnings = append(rep.Warnings, warnings...)
	if err != nil {
		return rep, err
	}
	rep.Request = req
	log = log.WithField("unique_id", req.UniqueID())

	secrets, err := build.ScanBuildArgs(req.BuildArgs())
	if err != nil {
		log.WithError(err).Warn("build arg secret scan unavailable")
	}
	rep.Warnings = append(rep.Warnings, secrets...)

	if p.DryRun {
		if info, err := build.ParseDockerfile(req.Dockerfile()); err == nil {
			rep.Stages = info.Stages
		}
		for _, plat := range req.Platforms() {
			rep.Plan = append(rep.Plan, p.Worker.Plan(req, plat))
		}
		return rep, nil
	}

	coord := &Coordinator{
		Builder:     p.Worker,
		MaxParallel: p.MaxParallel,
		Isolate:     p.Isolate,
		WorkDir:     p.WorkDir,
		CancelGrace: p.CancelGrace,
		Log:         log,
	}
	res := coord.Run(ctx, req)
	rep.Build = res
	if res.Workspace != "" {
		defer p.release(rep, res.Workspace, res.Cleanup)
	}
	if res.Outcome != build.Success {
		if res.FirstFailure != nil {
			return rep, res.FirstFailure
		}
		return rep, build.Errorf(build.KindBuildToolError, "build failed")
	}

	if p.Registry == nil || !p.Worker.Push {
		log.Info("images not pushed; skipping manifest lists")
		return rep, nil
	}
	composer := &manifest.Composer{Registry: p.Registry, Log: log}
	rep.Lists, err = composer.Compose(ctx, req, res.Results)
	return rep, err
}

// release removes a scratch directory or records it as kept.
func (p *Pipeline) release(rep *Report, dir string, cleanup func() error) {
	if p.KeepWorkDir {
		rep.Kept = append(rep.Kept, dir)
		return
	}
	if err := cleanup(); err != nil {
		p.logger().WithError(err).WithField("dir", dir).Warn("removing scratch directory")
	}
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}
