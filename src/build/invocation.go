package build

import (
	"io"
	"path/filepath"
	"time"
)

// Invocation is the typed description of one build-tool run. Executors turn
// it into an argument vector; nothing here is ever spliced into a shell string.
type Invocation struct {
	Platform     Platform
	Context      string   // absolute build context directory
	Dockerfile   string   // absolute path to the Dockerfile
	Destinations []string // full image references, in order
	BuildArgs    map[string]string
	Cache        bool
	CacheTTL     time.Duration
	CacheRepo    string
	Push         bool
	Insecure     bool

	// Log, when set, receives the tool output as it is produced.
	Log io.Writer
}

// NewInvocation plans the invocation for one platform of req.
func NewInvocation(req *Request, p Platform, refs []string) Invocation {
	return Invocation{
		Platform:     p,
		Context:      req.ContextDir(),
		Dockerfile:   filepath.Join(req.ContextDir(), req.Dockerfile()),
		Destinations: refs,
		BuildArgs:    req.BuildArgs(),
		Cache:        req.CacheEnabled(),
		CacheTTL:     req.CacheTTL(),
		Push:         true,
	}
}
