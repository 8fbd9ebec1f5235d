package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// waitDelay bounds how long Wait keeps draining output after the tool is
// killed. Grandchildren that inherited the pipes would otherwise hold Wait open.
const waitDelay = 2 * time.Second

// lockedBuffer is a bytes.Buffer safe for the concurrent writes exec makes
// when stdout and stderr are drained by separate goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// RunTool executes path with args, capturing combined output. When log is
// non-nil the output is also streamed to it. The returned output is verbatim.
// Cancelling ctx kills the tool and every process it started.
func RunTool(ctx context.Context, path string, args []string, log io.Writer) (string, error) {
	var captured lockedBuffer
	var w io.Writer = &captured
	if log != nil {
		w = io.MultiWriter(&captured, log)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.WaitDelay = waitDelay
	killGroup(cmd)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return captured.String(), fmt.Errorf("%s: %w (%w)", path, err, ctxErr)
		}
		return captured.String(), fmt.Errorf("%s: %w", path, err)
	}
	return captured.String(), nil
}
