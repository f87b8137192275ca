// Package repository implements §4.6: the tenant-wide timeline registry,
// empty-timeline creation, copy-on-write branching, and the GC/checkpoint
// entry points a supervisor drives.
package repository

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	pgerrors "github.com/bobboyms/pageserver/pkg/errors"
	"github.com/bobboyms/pageserver/pkg/gc"
	"github.com/bobboyms/pageserver/pkg/kv"
	"github.com/bobboyms/pageserver/pkg/metadata"
	"github.com/bobboyms/pageserver/pkg/timeline"
	"github.com/bobboyms/pageserver/pkg/types"
	"github.com/bobboyms/pageserver/pkg/walredo"
)

// Repository owns every timeline for one tenant, rooted at baseDir —
// "<base>/tenants/<tenant_id>" in §6's filesystem layout.
type Repository struct {
	baseDir string
	redo    walredo.Manager

	mu        sync.Mutex
	timelines map[uuid.UUID]*timeline.Timeline

	gcCollector *gc.Collector
}

// Open returns a Repository rooted at baseDir. It does not eagerly load
// any timeline — get_timeline is lazy per §4.6.
func Open(baseDir string, redo walredo.Manager) (*Repository, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "timelines"), 0755); err != nil {
		return nil, errors.Wrapf(err, "repository: creating %s", baseDir)
	}
	r := &Repository{
		baseDir:   baseDir,
		redo:      redo,
		timelines: make(map[uuid.UUID]*timeline.Timeline),
	}
	r.gcCollector = gc.New(r)
	return r, nil
}

// Lock/Unlock satisfy gc.Registry: the tenant-wide registry mutex, held
// for the duration of a GC sweep (§4.5 step 1) and across load/branch
// (§5).
func (r *Repository) Lock()   { r.mu.Lock() }
func (r *Repository) Unlock() { r.mu.Unlock() }

func (r *Repository) timelineDir(id uuid.UUID) string {
	return filepath.Join(r.baseDir, "timelines", id.String())
}

func (r *Repository) metadataPath(id uuid.UUID) string {
	return filepath.Join(r.timelineDir(id), "metadata")
}

// GetTimeline is get_timeline(id): the cached handle, or a lazy load
// from disk (recursively loading the ancestor first), opening the
// versioned store and seeding current_logical_size non-incrementally.
func (r *Repository) GetTimeline(id uuid.UUID) (*timeline.Timeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadTimelineLocked(id)
}

// LoadTimeline implements gc.Registry's LoadTimeline — it assumes the
// caller already holds the registry lock via Lock(), the way
// gc.Collector.Run does.
func (r *Repository) LoadTimeline(id uuid.UUID) (*timeline.Timeline, error) {
	return r.loadTimelineLocked(id)
}

func (r *Repository) loadTimelineLocked(id uuid.UUID) (*timeline.Timeline, error) {
	if tl, ok := r.timelines[id]; ok {
		return tl, nil
	}

	meta, err := metadata.Load(r.metadataPath(id))
	if err != nil {
		return nil, errors.Wrapf(err, "repository: loading metadata for %s", id)
	}

	var ancestor *timeline.Timeline
	if meta.HasAncestor {
		ancestor, err = r.loadTimelineLocked(meta.AncestorTimeline)
		if err != nil {
			return nil, err
		}
	}

	store, err := kv.Open(r.timelineDir(id))
	if err != nil {
		return nil, err
	}

	tl := timeline.New(timeline.Config{
		ID:            id,
		Dir:           r.timelineDir(id),
		Store:         store,
		Redo:          r.redo,
		Ancestor:      ancestor,
		AncestorLsn:   meta.AncestorLsn,
		StartLsn:      meta.AncestorLsn,
		LastRecordLsn: meta.DiskConsistentLsn,
	})

	size, err := tl.GetCurrentLogicalSizeNonIncremental(tl.GetLastRecordLsn())
	if err != nil {
		tl.SetState(timeline.Broken)
		r.timelines[id] = tl
		return nil, err
	}
	tl.PrimeLogicalSize(size)
	tl.SetState(timeline.Active)

	r.timelines[id] = tl
	return tl, nil
}

// CreateEmptyTimeline is create_empty_timeline(id): creates the
// directory, writes metadata {disk_consistent_lsn: 0, ancestor: None}
// with create_new semantics, fsyncs the file and the parent directory
// (§4.7), and opens the (empty) versioned store.
func (r *Repository) CreateEmptyTimeline(id uuid.UUID) (*timeline.Timeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.timelines[id]; ok {
		return nil, &pgerrors.AlreadyExistsError{TimelineID: id.String()}
	}

	dir := r.timelineDir(id)
	if err := os.Mkdir(dir, 0755); err != nil {
		if os.IsExist(err) {
			return nil, &pgerrors.AlreadyExistsError{TimelineID: id.String()}
		}
		return nil, errors.Wrapf(err, "repository: creating timeline directory %s", dir)
	}

	meta := metadata.TimelineMetadata{DiskConsistentLsn: 0}
	if err := metadata.Save(r.metadataPath(id), meta, true); err != nil {
		return nil, err
	}

	store, err := kv.Open(dir)
	if err != nil {
		return nil, err
	}

	tl := timeline.New(timeline.Config{
		ID:    id,
		Dir:   dir,
		Store: store,
		Redo:  r.redo,
	})
	tl.SetState(timeline.Active)
	r.timelines[id] = tl
	return tl, nil
}

// BranchTimeline is branch_timeline(src, dst, start_lsn) — §4.6: no data
// is copied, dst's metadata records the ancestor pointer and inherits
// prev_record_lsn from src only when start_lsn lands exactly on src's
// current last_record_lsn (otherwise prev_record_lsn can't be
// reconstructed meaningfully for a mid-stream fork).
func (r *Repository) BranchTimeline(src, dst uuid.UUID, startLsn types.Lsn) (*timeline.Timeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	srcTl, err := r.loadTimelineLocked(src)
	if err != nil {
		return nil, err
	}
	if _, ok := r.timelines[dst]; ok {
		return nil, &pgerrors.AlreadyExistsError{TimelineID: dst.String()}
	}

	srcLast := srcTl.GetLastRecordLsn()
	srcPrev, hasSrcPrev := srcTl.GetPrevRecordLsn()

	meta := metadata.TimelineMetadata{
		DiskConsistentLsn: startLsn,
		AncestorTimeline:  src,
		AncestorLsn:       startLsn,
		HasAncestor:       true,
	}
	if startLsn == srcLast && hasSrcPrev {
		meta.PrevRecordLsn = srcPrev
		meta.HasPrevLsn = true
	}

	dir := r.timelineDir(dst)
	if err := os.Mkdir(dir, 0755); err != nil {
		if os.IsExist(err) {
			return nil, &pgerrors.AlreadyExistsError{TimelineID: dst.String()}
		}
		return nil, errors.Wrapf(err, "repository: creating timeline directory %s", dir)
	}
	if err := metadata.Save(r.metadataPath(dst), meta, true); err != nil {
		return nil, err
	}

	store, err := kv.Open(dir)
	if err != nil {
		return nil, err
	}

	tl := timeline.New(timeline.Config{
		ID:            dst,
		Dir:           dir,
		Store:         store,
		Redo:          r.redo,
		Ancestor:      srcTl,
		AncestorLsn:   startLsn,
		StartLsn:      startLsn,
		LastRecordLsn: startLsn,
	})
	tl.SetState(timeline.Active)
	r.timelines[dst] = tl
	return tl, nil
}

// ListTimelineIDs implements gc.Registry: it reads the timelines
// directory, authoritative over the in-memory cache (§4.5 step 2) since
// that cache only holds timelines opened so far this process.
func (r *Repository) ListTimelineIDs() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(filepath.Join(r.baseDir, "timelines"))
	if err != nil {
		return nil, errors.Wrap(err, "repository: listing timelines directory")
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GcIteration is gc_iteration(target?, horizon, checkpoint_before_gc),
// delegated to pkg/gc.
func (r *Repository) GcIteration(ctx context.Context, target *uuid.UUID, horizon types.Lsn, checkpointBeforeGC bool) (gc.Result, error) {
	return r.gcCollector.Run(ctx, target, horizon, checkpointBeforeGC)
}

// Shutdown closes every opened timeline's versioned store.
func (r *Repository) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for _, tl := range r.timelines {
		if err := tl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
