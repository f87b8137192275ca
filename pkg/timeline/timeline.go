// Package timeline implements the Timeline object of §2/§4.2/§4.3: the
// VersionedStore-backed per-tenant-per-branch page history, its LSN gate,
// its single-writer guard, and the page-reconstruction algorithm.
package timeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	pgerrors "github.com/bobboyms/pageserver/pkg/errors"
	"github.com/bobboyms/pageserver/pkg/keys"
	"github.com/bobboyms/pageserver/pkg/kv"
	"github.com/bobboyms/pageserver/pkg/types"
	"github.com/bobboyms/pageserver/pkg/walredo"
)

// State is the timeline lifecycle of SPEC_FULL.md supplement 3
// (original_source's safekeeper-side timeline state machine): a timeline
// that fails a corruption check moves to Broken and GetPageAtLsn stops
// serving page reads from it rather than silently returning garbage.
type State int

const (
	Loading State = iota
	Active
	Broken
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Active:
		return "active"
	case Broken:
		return "broken"
	default:
		return "unknown"
	}
}

// WaitLsnTimeout is the fixed wait_lsn deadline of §4.2.
const WaitLsnTimeout = 60 * time.Second

// Timeline is one branch of page history: a VersionedStore (§4.1), the
// LSN gate readers block on, and — for everything but a root timeline —
// an ancestor to fall through to (§3's copy-on-write parent pointer).
type Timeline struct {
	ID  uuid.UUID
	Dir string

	store *kv.Store
	redo  walredo.Manager

	ancestor    *Timeline
	ancestorLsn types.Lsn
	startLsn    types.Lsn // disk_consistent_lsn at creation/branch time

	gate              *lsnGate
	diskConsistentLsn atomic.Uint64
	prevRecordLsn     atomic.Uint64
	hasPrevRecordLsn  atomic.Bool

	// writeMu is write_lock: acquired BEFORE any store/pending access by
	// a writer, per §5/§9, so the checkpointer never races the ingest
	// task.
	writeMu sync.Mutex
	pending *pendingVersions
	sizes   *sizeCache

	logicalSize atomic.Int64

	stateMu sync.RWMutex
	state   State
}

// Config is everything a Timeline needs besides its identity — the
// out-of-band collaborators it was handed at open/create time.
type Config struct {
	ID          uuid.UUID
	Dir         string
	Store       *kv.Store
	Redo        walredo.Manager
	Ancestor    *Timeline
	AncestorLsn types.Lsn

	// StartLsn is the immutable branch point: 0 for a root timeline, the
	// ancestor LSN passed to branch_timeline for a child (§4.2's
	// get_start_lsn never changes after creation).
	StartLsn types.Lsn

	// LastRecordLsn seeds the LSN gate on open/branch — disk_consistent_lsn
	// as last persisted in the timeline's metadata file, at creation or at
	// the last checkpoint.
	LastRecordLsn types.Lsn
}

// New builds a Timeline in the Loading state, ready for its caller
// (pkg/repository) to compute current_logical_size and flip it Active.
func New(cfg Config) *Timeline {
	t := &Timeline{
		ID:          cfg.ID,
		Dir:         cfg.Dir,
		store:       cfg.Store,
		redo:        cfg.Redo,
		ancestor:    cfg.Ancestor,
		ancestorLsn: cfg.AncestorLsn,
		startLsn:    cfg.StartLsn,
		gate:        newLSNGate(cfg.LastRecordLsn),
		pending:     newPendingVersions(),
		sizes:       newSizeCache(),
		state:       Loading,
	}
	t.diskConsistentLsn.Store(uint64(cfg.LastRecordLsn))
	return t
}

// PrimeLogicalSize seeds the incrementally-maintained logical size total
// right after open, from a one-time non-incremental scan (§4.6's
// get_timeline: "initializes current_logical_size via a non-incremental
// scan").
func (t *Timeline) PrimeLogicalSize(v int64) {
	t.logicalSize.Store(v)
}

// State returns the current lifecycle state.
func (t *Timeline) State() State {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.state
}

// SetState transitions the timeline's lifecycle state. A transition into
// Broken is sticky: nothing moves a Broken timeline back to Active.
func (t *Timeline) SetState(s State) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if t.state == Broken {
		return
	}
	t.state = s
}

func (t *Timeline) markBroken(err error) error {
	t.SetState(Broken)
	return err
}

// Close releases the underlying versioned store. The timeline must not be
// used afterward.
func (t *Timeline) Close() error {
	return t.store.Close()
}

// GetLastRecordLsn returns the LSN gate's current value.
func (t *Timeline) GetLastRecordLsn() types.Lsn {
	return t.gate.load()
}

// GetPrevRecordLsn returns the prior record's start, only meaningful
// after a full flush per §3.
func (t *Timeline) GetPrevRecordLsn() (types.Lsn, bool) {
	if !t.hasPrevRecordLsn.Load() {
		return 0, false
	}
	return types.Lsn(t.prevRecordLsn.Load()), true
}

// GetStartLsn returns the LSN this timeline began at: 0 for a root
// timeline, the branch LSN for a child (§4.6).
func (t *Timeline) GetStartLsn() types.Lsn {
	return t.startLsn
}

// GetAncestorLsn returns the branch point on the parent, and whether this
// timeline has an ancestor at all.
func (t *Timeline) GetAncestorLsn() (types.Lsn, bool) {
	return t.ancestorLsn, t.ancestor != nil
}

// Ancestor exposes the parent timeline, or nil for a root timeline —
// used by the garbage collector to build the branch-point set (§4.5).
func (t *Timeline) Ancestor() *Timeline {
	return t.ancestor
}

// DiskConsistentLsn returns the durable LSN: §3's "everything <= this is
// durable". Every write here is already pebble-durable on return (§4.1's
// kv.Store.Put uses pebble.Sync), so advancing it per-write — rather than
// only after a coarser fsync barrier — does not overstate durability in
// this implementation; see DESIGN.md's note on Open Question 3.
func (t *Timeline) DiskConsistentLsn() types.Lsn {
	return types.Lsn(t.diskConsistentLsn.Load())
}

// GetCurrentLogicalSize returns the cached running total of all relation
// sizes (bytes), maintained incrementally by the writer guard.
func (t *Timeline) GetCurrentLogicalSize() int64 {
	return t.logicalSize.Load()
}

// GetCurrentLogicalSizeNonIncremental recomputes the logical size from
// scratch by scanning every relation's metadata at lsn, the fallback path
// used when opening a timeline whose cached total wasn't persisted.
func (t *Timeline) GetCurrentLogicalSizeNonIncremental(lsn types.Lsn) (int64, error) {
	rels, err := t.listAllRels(lsn)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entity := range rels {
		size, ok, err := t.getRelishSize(entity, lsn)
		if err != nil {
			return 0, err
		}
		if ok {
			total += int64(size) * types.PageSize
		}
	}
	return total, nil
}

// WaitLsn blocks until the LSN gate has advanced to or past lsn, or the
// fixed 60s timeout elapses (§4.2). Panics if ctx is marked by
// WithIngestTask, whichever timeline's ingest task marked it (the marker
// carries no timeline identity): an ingest task is the only writer able
// to advance its gate, so waiting on it would deadlock (§9).
func (t *Timeline) WaitLsn(ctx context.Context, lsn types.Lsn) error {
	if isIngestTask(ctx) {
		panic("timeline: wait_lsn called from the WAL-ingest task")
	}
	return t.gate.waitFor(lsn, WaitLsnTimeout)
}

// GetPageAtLsn is §4.2's get_page_at_lsn: reconstructs the page at
// (entity, block) as of requestedLsn, falling through to the ancestor
// chain when nothing local covers it.
func (t *Timeline) GetPageAtLsn(ctx context.Context, entity types.RelishTag, block types.BlockNumber, requestedLsn types.Lsn) ([]byte, error) {
	if !entity.IsBlocky() && block != 0 {
		return nil, &pgerrors.InvalidRequestError{Reason: "block must be 0 for a non-blocky entity"}
	}
	if !requestedLsn.IsAligned() {
		return nil, &pgerrors.InvalidRequestError{Reason: "requested_lsn is not 8-byte aligned"}
	}
	if t.State() == Broken {
		return nil, &pgerrors.CorruptionError{Reason: "timeline is broken after an earlier corruption"}
	}
	img, err := t.reconstructPage(ctx, entity, block, requestedLsn)
	if err != nil {
		if _, ok := err.(*pgerrors.CorruptionError); ok {
			return nil, t.markBroken(err)
		}
		return nil, err
	}
	return img, nil
}

// reconstructPage implements §4.2 steps 1-4 plus the ancestor fallback
// from §9: collect the full chain — local deltas plus, when the local
// timeline runs out before reaching a base, whatever the ancestor chain
// contributes — then invoke redo exactly once against the combined
// chain.
func (t *Timeline) reconstructPage(ctx context.Context, entity types.RelishTag, block types.BlockNumber, requestedLsn types.Lsn) ([]byte, error) {
	base, records, found, err := t.collectChainAcrossAncestors(entity, block, requestedLsn)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &pgerrors.NotFoundError{Entity: entity.String(), Lsn: requestedLsn.String()}
	}
	if len(records) == 0 {
		return base, nil
	}
	img, err := t.redo.RequestRedo(ctx, entity, block, requestedLsn, base, records)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// collectChainAcrossAncestors is §4.2 steps 1-2 plus the §9 cross-timeline
// fallback: collect this timeline's own chain, and if it runs out without
// reaching a base (Image or will_init), recurse into the ancestor — with
// requestedLsn clamped to min(requestedLsn, ancestor_lsn), since the
// child cannot see anything past its own branch point — to supply the
// missing base (and any older deltas), prepending them ahead of the
// deltas already collected locally. found is false only when neither
// this timeline nor any ancestor has anything at all for (entity,
// block); a local chain that collected deltas but whose ancestor (or
// lack thereof) also fails to supply a base is a genuine corruption
// (invariant 5), since every reachable timeline ran out without a base.
func (t *Timeline) collectChainAcrossAncestors(entity types.RelishTag, block types.BlockNumber, requestedLsn types.Lsn) (base []byte, records []walredo.Record, found bool, err error) {
	localBase, localRecords, terminated, err := t.collectChain(entity, block, requestedLsn)
	if err != nil {
		return nil, nil, false, err
	}
	if terminated {
		return localBase, localRecords, true, nil
	}

	if t.ancestor == nil {
		if len(localRecords) == 0 {
			return nil, nil, false, nil
		}
		return nil, nil, false, &pgerrors.CorruptionError{
			Reason: "left entity/block prefix without finding a base image or will_init record (invariant 5)",
		}
	}

	clamped := types.Min(requestedLsn, t.ancestorLsn)
	ancBase, ancRecords, ancFound, err := t.ancestor.collectChainAcrossAncestors(entity, block, clamped)
	if err != nil {
		return nil, nil, false, err
	}
	if !ancFound {
		if len(localRecords) == 0 {
			return nil, nil, false, nil
		}
		return nil, nil, false, &pgerrors.CorruptionError{
			Reason: "left entity/block prefix without finding a base image or will_init record (invariant 5)",
		}
	}

	combined := make([]walredo.Record, 0, len(ancRecords)+len(localRecords))
	combined = append(combined, ancRecords...)
	combined = append(combined, localRecords...)
	return ancBase, combined, true, nil
}

// collectChain is §4.2 step 1-2: open a reverse iterator over
// Data((entity,block,0))..Data((entity,block,requestedLsn)), merged with
// any not-yet-durable pending entries (SPEC_FULL.md supplement 1), and
// walk backward accumulating deltas until an Image (base) or a
// Delta{will_init=true} (no base) terminates the chain. terminated is
// true only when the walk actually reached a base or a will_init record
// on THIS timeline; records is returned (possibly non-empty) even when
// terminated is false, since the caller needs whatever deltas were
// collected before the chain ran off the end of this timeline's data.
func (t *Timeline) collectChain(entity types.RelishTag, block types.BlockNumber, requestedLsn types.Lsn) (base []byte, records []walredo.Record, terminated bool, err error) {
	w, err := newChainWalker(t.store, t.pending, entity, block, requestedLsn)
	if err != nil {
		return nil, nil, false, err
	}
	defer w.Close()

	chronological := func(reversed []walredo.Record) []walredo.Record {
		out := make([]walredo.Record, len(reversed))
		for i, r := range reversed {
			out[len(reversed)-1-i] = r
		}
		return out
	}

	var reversed []walredo.Record
	for {
		lsn, v, ok, werr := w.next()
		if werr != nil {
			return nil, nil, false, werr
		}
		if !ok {
			return nil, chronological(reversed), false, nil
		}
		if v.isImage {
			return v.image, chronological(reversed), true, nil
		}
		reversed = append(reversed, v.asRecord(lsn))
		if v.willInit {
			return nil, chronological(reversed), true, nil
		}
	}
}
