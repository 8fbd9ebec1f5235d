package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sofmeright/dockwright/src/build"
)

// Builder builds one platform of a request. *build.Worker implements it.
type Builder interface {
	Build(ctx context.Context, req *build.Request, p build.Platform) build.PlatformResult
}

// DefaultCancelGrace bounds how long the coordinator waits for cancelled
// workers to report after the first failure.
const DefaultCancelGrace = 10 * time.Second

// Coordinator fans a request out to one worker per platform and fails fast.
type Coordinator struct {
	Builder     Builder
	MaxParallel int           // zero or negative means one slot per platform
	Isolate     bool          // give every worker its own copy of the build context
	WorkDir     string        // parent of the per-run workspace; system temp dir when empty
	CancelGrace time.Duration // zero waits for every worker
	Log         logrus.FieldLogger
}

// CoordinatorResult is the aggregate of one coordinated build.
type CoordinatorResult struct {
	Outcome build.Outcome
	// Results holds every result reported in time, in request platform order.
	Results []build.PlatformResult
	// FirstFailure is the failure that triggered cancellation.
	FirstFailure *build.Error
	// Abandoned lists platforms that had not reported when the grace period ran out.
	Abandoned []string
	Workspace string
}

// Cleanup removes the per-run workspace. It is a no-op when workers were
// abandoned, since they may still be reading from it.
func (r *CoordinatorResult) Cleanup() error {
	if r.Workspace == "" || len(r.Abandoned) > 0 {
		return nil
	}
	return os.RemoveAll(r.Workspace)
}

// Run builds every platform of req. The first failing worker cancels the
// others; a success that arrives later does not change the outcome.
func (c *Coordinator) Run(ctx context.Context, req *build.Request) *CoordinatorResult {
	plats := req.Platforms()
	log := c.logger().WithField("unique_id", req.UniqueID())
	out := &CoordinatorResult{Outcome: build.Success}

	if c.Isolate {
		ws, err := os.MkdirTemp(c.WorkDir, "dockwright-"+req.UniqueID()+"-")
		if err != nil {
			out.Outcome = build.Failure
			out.FirstFailure = &build.Error{Kind: build.KindMissingInput, Err: fmt.Errorf("creating workspace: %w", err)}
			return out
		}
		out.Workspace = ws
	}

	limit := c.MaxParallel
	if limit <= 0 || limit > len(plats) {
		limit = len(plats)
	}
	sem := semaphore.NewWeighted(int64(limit))
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu        sync.Mutex
		slots     = make([]*build.PlatformResult, len(plats))
		closed    bool
		firstOnce sync.Once
		failed    = make(chan struct{})
	)

	record := func(i int, res build.PlatformResult) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			log.WithField("platform", res.Platform.ID).Debug("dropping result reported after grace period")
			return
		}
		slots[i] = &res
	}

	log.WithFields(logrus.Fields{"platforms": len(plats), "parallel": limit}).Info("dispatching platform builds")

	for i, p := range plats {
		g.Go(func() error {
			var dir string
			if out.Workspace != "" {
				dir = filepath.Join(out.Workspace, fmt.Sprintf("%d-%s", i, p.Arch()))
			}
			res := c.buildOne(gctx, sem, req, p, dir)
			record(i, res)
			if res.OK() {
				return nil
			}
			firstOnce.Do(func() {
				mu.Lock()
				out.FirstFailure = res.Err
				mu.Unlock()
				close(failed)
			})
			return res.Err
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-failed:
		if c.CancelGrace <= 0 {
			<-done
			break
		}
		timer := time.NewTimer(c.CancelGrace)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			log.WithField("grace", c.CancelGrace).Warn("workers still running after first failure; not waiting further")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	closed = true
	for i, s := range slots {
		if s == nil {
			out.Abandoned = append(out.Abandoned, plats[i].ID)
			continue
		}
		out.Results = append(out.Results, *s)
	}
	if out.FirstFailure != nil {
		out.Outcome = build.Failure
	}
	return out
}

// buildOne waits for a slot, copies the build context into dir when set and builds.
func (c *Coordinator) buildOne(ctx context.Context, sem *semaphore.Weighted, req *build.Request, p build.Platform, dir string) build.PlatformResult {
	if err := sem.Acquire(ctx, 1); err != nil {
		return build.PlatformResult{
			Platform: p,
			Outcome:  build.Failure,
			Err:      &build.Error{Kind: build.KindCancelled, Platform: p.ID, Err: err},
		}
	}
	defer sem.Release(1)

	wreq := req
	if dir != "" {
		if err := copyTree(req.ContextDir(), dir); err != nil {
			return build.PlatformResult{
				Platform: p,
				Outcome:  build.Failure,
				Err:      &build.Error{Kind: build.KindMissingInput, Platform: p.ID, Ref: req.ContextDir(), Err: fmt.Errorf("copying build context: %w", err)},
			}
		}
		wreq = req.WithContextDir(dir)
	}
	return c.Builder.Build(ctx, wreq, p)
}

func (c *Coordinator) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}
