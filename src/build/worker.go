package build

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Worker builds one platform of a request with an Executor.
type Worker struct {
	Executor  Executor
	Timeout   time.Duration // per-platform bound; zero means none
	Push      bool
	Insecure  bool
	CacheRepo string
	Log       logrus.FieldLogger
}

// Build runs the platform build and always returns a result; failures are
// reported through PlatformResult.Err rather than a separate error.
func (w *Worker) Build(ctx context.Context, req *Request, p Platform) PlatformResult {
	start := time.Now()
	log := w.logger().WithFields(logrus.Fields{
		"platform":  p.ID,
		"unique_id": req.UniqueID(),
	})

	fail := func(e *Error, output string) PlatformResult {
		e.Platform = p.ID
		log.WithField("kind", e.Kind).Warn("platform build failed")
		return PlatformResult{
			Platform: p,
			Outcome:  Failure,
			Output:   output,
			Err:      e,
			Duration: time.Since(start),
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(&Error{Kind: KindCancelled, Err: err}, "")
	}

	// The worker may not share the coordinator's filesystem view.
	if err := checkInputs(req.ContextDir(), req.Dockerfile()); err != nil {
		var be *Error
		errors.As(err, &be)
		return fail(be, "")
	}

	inv := w.Plan(req, p)
	refs := inv.Destinations
	if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		inv.Log = logWriter{entry: log}
	}

	runCtx := ctx
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	log.WithField("destinations", strings.Join(refs, ", ")).Info("starting platform build")
	res, err := w.Executor.Run(runCtx, inv)
	if res == nil {
		res = &ExecResult{}
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return fail(&Error{Kind: KindCancelled, Detail: res.Output, Err: ctx.Err()}, res.Output)
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return fail(&Error{Kind: KindTimeout, Detail: res.Output, Err: fmt.Errorf("build exceeded %s", w.Timeout)}, res.Output)
		default:
			return fail(&Error{Kind: KindBuildToolError, Detail: res.Output, Err: err}, res.Output)
		}
	}

	log.WithField("duration", time.Since(start).Round(time.Millisecond)).Info("platform build succeeded")
	return PlatformResult{
		Platform: p,
		Outcome:  Success,
		Tags:     refs,
		Digest:   res.Digest,
		Steps:    res.Steps,
		Output:   res.Output,
		Duration: time.Since(start),
	}
}

// Plan returns the invocation Build runs for p: destinations "{tag}-{arch}"
// and "latest-{arch}" plus the worker's push and cache settings.
func (w *Worker) Plan(req *Request, p Platform) Invocation {
	var refs []string
	for _, t := range ArchTags(req.Tag(), p) {
		refs = append(refs, req.Ref(t))
	}
	inv := NewInvocation(req, p, refs)
	inv.Push = w.Push
	inv.Insecure = w.Insecure
	inv.CacheRepo = w.CacheRepo
	return inv
}

func (w *Worker) logger() logrus.FieldLogger {
	if w.Log == nil {
		return logrus.StandardLogger()
	}
	return w.Log
}

// logWriter forwards tool output to the log at debug level, one entry per line.
type logWriter struct {
	entry *logrus.Entry
}

func (lw logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lw.entry.Debug(line)
		}
	}
	return len(p), nil
}
