package build

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var uniqueSeq atomic.Uint64

// NewUniqueID returns "YYYYMMDD-HHMMSS-<seq>-<rand8>". The process-wide
// sequence keeps IDs distinct within a process; the random suffix keeps them
// distinct across processes started in the same second.
func NewUniqueID(now time.Time) string {
	seq := uniqueSeq.Add(1)
	return fmt.Sprintf("%s-%04d-%s", now.Format(timestampLayout), seq, uuid.NewString()[:8])
}
