package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/dockwright/src/build"
)

// scriptedBuilder finishes each platform after a fixed delay with a fixed outcome.
type scriptedBuilder struct {
	delay map[string]time.Duration
	fail  map[string]bool

	mu        sync.Mutex
	cancelled map[string]bool
	dirs      map[string]string
}

func (s *scriptedBuilder) Build(ctx context.Context, req *build.Request, p build.Platform) build.PlatformResult {
	s.mu.Lock()
	if s.dirs == nil {
		s.dirs = map[string]string{}
	}
	s.dirs[p.ID] = req.ContextDir()
	s.mu.Unlock()

	select {
	case <-time.After(s.delay[p.ID]):
	case <-ctx.Done():
		s.mu.Lock()
		if s.cancelled == nil {
			s.cancelled = map[string]bool{}
		}
		s.cancelled[p.ID] = true
		s.mu.Unlock()
		return build.PlatformResult{
			Platform: p,
			Outcome:  build.Failure,
			Err:      &build.Error{Kind: build.KindCancelled, Platform: p.ID, Err: ctx.Err()},
		}
	}
	if s.fail[p.ID] {
		return build.PlatformResult{
			Platform: p,
			Outcome:  build.Failure,
			Err:      &build.Error{Kind: build.KindBuildToolError, Platform: p.ID, Detail: "exit status 1", Err: errors.New("exit status 1")},
		}
	}
	return build.PlatformResult{Platform: p, Outcome: build.Success, Tags: []string{req.Ref(build.ArchTag(req.Tag(), p))}}
}

func testRequest(t *testing.T, platforms ...string) *build.Request {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Dockerfile"), []byte("FROM alpine\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main\n"), 0o644))
	req, _, err := build.NewRequest(build.RequestInput{
		AppName:    "iot-driver",
		AppVersion: "1.2.0",
		Platforms:  platforms,
		SourceRoot: root,
		Registry:   "harbor.local",
		Project:    "iot",
	})
	require.NoError(t, err)
	return req
}

func TestCoordinatorAllSucceed(t *testing.T) {
	req := testRequest(t, "linux/amd64", "linux/arm64", "linux/arm/v7")
	b := &scriptedBuilder{delay: map[string]time.Duration{
		"linux/amd64":  15 * time.Millisecond,
		"linux/arm64":  5 * time.Millisecond,
		"linux/arm/v7": 10 * time.Millisecond,
	}}

	res := (&Coordinator{Builder: b}).Run(context.Background(), req)
	assert.Equal(t, build.Success, res.Outcome)
	assert.Nil(t, res.FirstFailure)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "linux/amd64", res.Results[0].Platform.ID, "results keep request order")
	assert.Equal(t, "linux/arm/v7", res.Results[2].Platform.ID)
	assert.Empty(t, res.Abandoned)
}

func TestCoordinatorFailFast(t *testing.T) {
	req := testRequest(t, "linux/amd64", "linux/arm64")
	b := &scriptedBuilder{
		delay: map[string]time.Duration{
			"linux/amd64": 2 * time.Second,
			"linux/arm64": 5 * time.Millisecond,
		},
		fail: map[string]bool{"linux/arm64": true},
	}

	start := time.Now()
	res := (&Coordinator{Builder: b}).Run(context.Background(), req)
	assert.Less(t, time.Since(start), time.Second, "sibling must be cancelled, not awaited")

	assert.Equal(t, build.Failure, res.Outcome)
	require.NotNil(t, res.FirstFailure)
	assert.Equal(t, build.KindBuildToolError, res.FirstFailure.Kind)
	assert.Equal(t, "linux/arm64", res.FirstFailure.Platform)
	assert.Equal(t, "exit status 1", res.FirstFailure.Detail)
	assert.True(t, b.cancelled["linux/amd64"], "amd64 should observe cancellation")
	require.Len(t, res.Results, 2)
}

func TestCoordinatorLateSuccessKeepsFailure(t *testing.T) {
	req := testRequest(t, "linux/amd64", "linux/arm64")
	b := &scriptedBuilder{
		delay: map[string]time.Duration{"linux/amd64": 10 * time.Millisecond, "linux/arm64": 5 * time.Millisecond},
		fail:  map[string]bool{"linux/arm64": true},
	}
	res := (&Coordinator{Builder: b}).Run(context.Background(), req)
	assert.Equal(t, build.Failure, res.Outcome)
	assert.Equal(t, "linux/arm64", res.FirstFailure.Platform)
}

func TestCoordinatorIsolatesContext(t *testing.T) {
	req := testRequest(t, "linux/amd64", "linux/arm64")
	b := &scriptedBuilder{}
	work := t.TempDir()

	res := (&Coordinator{Builder: b, Isolate: true, WorkDir: work}).Run(context.Background(), req)
	require.Equal(t, build.Success, res.Outcome)
	require.NotEmpty(t, res.Workspace)

	amd, arm := b.dirs["linux/amd64"], b.dirs["linux/arm64"]
	assert.NotEqual(t, req.ContextDir(), amd)
	assert.NotEqual(t, amd, arm)
	assert.FileExists(t, filepath.Join(amd, "Dockerfile"))
	assert.FileExists(t, filepath.Join(arm, "src", "main.go"))

	require.NoError(t, res.Cleanup())
	assert.NoDirExists(t, res.Workspace)
}

type countingBuilder struct {
	running atomic.Int32
	peak    atomic.Int32
}

func (c *countingBuilder) Build(_ context.Context, _ *build.Request, p build.Platform) build.PlatformResult {
	n := c.running.Add(1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	c.running.Add(-1)
	return build.PlatformResult{Platform: p, Outcome: build.Success}
}

func TestCoordinatorMaxParallel(t *testing.T) {
	req := testRequest(t, "linux/amd64", "linux/arm64", "linux/arm/v7", "linux/ppc64le")
	b := &countingBuilder{}

	res := (&Coordinator{Builder: b, MaxParallel: 2}).Run(context.Background(), req)
	assert.Equal(t, build.Success, res.Outcome)
	assert.Len(t, res.Results, 4)
	assert.LessOrEqual(t, b.peak.Load(), int32(2))
}

// stuckBuilder ignores cancellation for one platform.
type stuckBuilder struct {
	release chan struct{}
}

func (s *stuckBuilder) Build(_ context.Context, _ *build.Request, p build.Platform) build.PlatformResult {
	if p.ID == "linux/amd64" {
		<-s.release
		return build.PlatformResult{Platform: p, Outcome: build.Success}
	}
	return build.PlatformResult{Platform: p, Outcome: build.Failure, Err: &build.Error{Kind: build.KindTimeout, Platform: p.ID}}
}

func TestCoordinatorCancelGrace(t *testing.T) {
	req := testRequest(t, "linux/amd64", "linux/arm64")
	b := &stuckBuilder{release: make(chan struct{})}
	defer close(b.release)

	res := (&Coordinator{Builder: b, CancelGrace: 20 * time.Millisecond}).Run(context.Background(), req)
	assert.Equal(t, build.Failure, res.Outcome)
	assert.Equal(t, build.KindTimeout, res.FirstFailure.Kind)
	assert.Equal(t, []string{"linux/amd64"}, res.Abandoned)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "linux/arm64", res.Results[0].Platform.ID)
}
