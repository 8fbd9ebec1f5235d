package build

import "time"

// Outcome is the terminal state of a platform build.
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failed"
)

// PlatformResult is produced exactly once per worker and never modified after.
type PlatformResult struct {
	Platform Platform
	Outcome  Outcome
	Tags     []string // full references, "{tag}-{arch}" then "latest-{arch}"; set iff Success
	Digest   string   // pushed digest, when the tool reported one
	Steps    []StepEvent
	Output   string // raw tool output
	Err      *Error // set iff Failure
	Duration time.Duration
}

// OK reports whether the platform build succeeded.
func (r PlatformResult) OK() bool { return r.Outcome == Success }
