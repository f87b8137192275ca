// lsngate.go implements the "LSN condition variable" of §9: an
// (atomic current_lsn, condvar) pair guarded by a mutex. advance()
// updates then wakes every waiter; waitFor() blocks until the gate
// reaches the target or a deadline passes.
package timeline

import (
	"sync"
	"time"

	pgerrors "github.com/bobboyms/pageserver/pkg/errors"
	"github.com/bobboyms/pageserver/pkg/types"
)

type lsnGate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	current types.Lsn
}

func newLSNGate(initial types.Lsn) *lsnGate {
	g := &lsnGate{current: initial}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *lsnGate) load() types.Lsn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// advance bumps the gate to lsn (no-op if lsn doesn't move it forward)
// and wakes every wait_lsn waiter — §4.3's advance_last_record_lsn.
func (g *lsnGate) advance(lsn types.Lsn) {
	g.mu.Lock()
	if lsn > g.current {
		g.current = lsn
	}
	g.mu.Unlock()
	g.cond.Broadcast()
}

// waitFor blocks until the gate reaches lsn or timeout elapses, per
// §4.2's wait_lsn. A sync.Cond has no built-in deadline, so a timer wakes
// the waiter one last time right at the deadline the way the teacher's
// background-sync ticker wakes its own goroutine on a schedule.
func (g *lsnGate) waitFor(lsn types.Lsn, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	g.mu.Lock()
	defer g.mu.Unlock()

	for g.current < lsn {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &pgerrors.TimeoutError{WaitedFor: lsn.String()}
		}
		timer := time.AfterFunc(remaining, g.cond.Broadcast)
		g.cond.Wait()
		timer.Stop()
	}
	return nil
}
