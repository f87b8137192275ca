// Package gc implements §4.5's garbage collector: the branch-point
// survey, the saturating cutoff, and the retain-set sweep delegated down
// to timeline.Timeline.GCTimeline. It owns the monotonicity clamp of
// SPEC_FULL.md supplement 4 (the original's GC refuses to let a
// timeline's cutoff retreat) that spec.md §4.5 step 4 only states
// loosely as "saturating; skip if horizon exceeds it".
package gc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobboyms/pageserver/pkg/timeline"
	"github.com/bobboyms/pageserver/pkg/types"
)

// Registry is what pkg/repository exposes to the collector: enough to
// enumerate every timeline on disk (authoritative over whatever subset
// is cached in memory, §4.5 step 2) and lazily load each one.
type Registry interface {
	// Lock/Unlock guard the tenant-wide timelines registry for the
	// duration of a sweep (§4.5 step 1), preventing a new timeline from
	// appearing mid-pass.
	Lock()
	Unlock()

	ListTimelineIDs() ([]uuid.UUID, error)
	LoadTimeline(id uuid.UUID) (*timeline.Timeline, error)
}

// Result aggregates one gc_iteration's counters, per §4.5's final
// paragraph.
type Result struct {
	TimelinesScanned    int
	TimelinesSkipped    int
	DataVersionsDeleted int64
	MetadataRowsDeleted int64
	Elapsed             time.Duration
}

// Collector runs gc_iteration against a Registry, remembering the last
// cutoff it computed per timeline so a later, more lenient horizon can
// never walk a timeline's retention point backwards (the monotonicity
// clamp above).
type Collector struct {
	registry Registry

	mu          sync.Mutex
	lastCutoffs map[uuid.UUID]types.Lsn
}

// New builds a Collector bound to registry.
func New(registry Registry) *Collector {
	return &Collector{
		registry:    registry,
		lastCutoffs: make(map[uuid.UUID]types.Lsn),
	}
}

// Run implements §4.5's gc_iteration(target?, horizon,
// checkpoint_before_gc). A nil target sweeps every timeline; a non-nil
// target restricts the sweep to that one timeline, but branch points are
// still surveyed across the whole tenant since a sibling elsewhere may
// be the only thing pinning a retained LSN.
func (c *Collector) Run(ctx context.Context, target *uuid.UUID, horizon types.Lsn, checkpointBeforeGC bool) (Result, error) {
	start := time.Now()
	var result Result

	c.registry.Lock()
	defer c.registry.Unlock()

	ids, err := c.registry.ListTimelineIDs()
	if err != nil {
		return result, err
	}

	loaded := make(map[uuid.UUID]*timeline.Timeline, len(ids))
	for _, id := range ids {
		tl, err := c.registry.LoadTimeline(id)
		if err != nil {
			return result, err
		}
		loaded[id] = tl
	}

	// §4.5 step 3: the branch-point set, keyed by parent timeline ID.
	branchPoints := make(map[uuid.UUID][]types.Lsn)
	for _, tl := range loaded {
		if anc := tl.Ancestor(); anc != nil {
			ancestorLsn, _ := tl.GetAncestorLsn()
			branchPoints[anc.ID] = append(branchPoints[anc.ID], ancestorLsn)
		}
	}

	for id, tl := range loaded {
		if target != nil && id != *target {
			continue
		}

		cutoff, ok := c.computeCutoff(id, tl.GetLastRecordLsn(), horizon)
		if !ok {
			result.TimelinesSkipped++
			continue
		}

		if checkpointBeforeGC {
			if _, err := tl.ForceCheckpoint(ctx); err != nil {
				return result, err
			}
		}

		retain := append([]types.Lsn{cutoff}, branchPoints[id]...)
		stats, err := tl.GCTimeline(retain, cutoff)
		if err != nil {
			return result, err
		}

		result.TimelinesScanned++
		result.DataVersionsDeleted += stats.DataVersionsDeleted
		result.MetadataRowsDeleted += stats.MetadataRowsDeleted
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// computeCutoff is §4.5 step 4: cutoff = last_record_lsn - horizon,
// saturating at 0, skipped if horizon exceeds last_record_lsn — and
// clamped so it never retreats below the last cutoff this collector
// already computed for the timeline (the monotonicity guard).
func (c *Collector) computeCutoff(id uuid.UUID, lastRecordLsn, horizon types.Lsn) (types.Lsn, bool) {
	if horizon > lastRecordLsn {
		return 0, false
	}
	cutoff := lastRecordLsn - horizon

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.lastCutoffs[id]; ok && cutoff < prev {
		cutoff = prev
	}
	c.lastCutoffs[id] = cutoff
	return cutoff, true
}
