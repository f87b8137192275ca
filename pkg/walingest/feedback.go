package walingest

import (
	"time"

	"github.com/bobboyms/pageserver/pkg/types"
)

// Feedback is the periodic status message of §4.8 step 6, supplemented
// per SPEC_FULL.md's ambient-loop section with a wall-clock timestamp so
// a receiving safekeeper/monitor can compute propagation lag.
type Feedback struct {
	WriteLsn    types.Lsn
	FlushLsn    types.Lsn // disk_consistent_lsn
	ApplyLsn    types.Lsn // remote_consistent_lsn
	LogicalSize int64
	WallTime    time.Time
}
