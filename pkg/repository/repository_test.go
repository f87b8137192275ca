package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"

	pgerrors "github.com/bobboyms/pageserver/pkg/errors"
	"github.com/bobboyms/pageserver/pkg/types"
	"github.com/bobboyms/pageserver/pkg/walredo"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := Open(t.TempDir(), walredo.NewLocalManager())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Shutdown() })
	return r
}

func TestRepository_CreateEmptyTimeline(t *testing.T) {
	r := openTestRepo(t)
	id := uuid.New()

	tl, err := r.CreateEmptyTimeline(id)
	if err != nil {
		t.Fatalf("CreateEmptyTimeline: %v", err)
	}
	if tl.ID != id {
		t.Errorf("timeline ID = %s, want %s", tl.ID, id)
	}
	if tl.GetLastRecordLsn() != types.InvalidLsn {
		t.Errorf("expected a fresh timeline to start at lsn 0, got %s", tl.GetLastRecordLsn())
	}
}

func TestRepository_CreateEmptyTimeline_AlreadyExists(t *testing.T) {
	r := openTestRepo(t)
	id := uuid.New()

	if _, err := r.CreateEmptyTimeline(id); err != nil {
		t.Fatalf("first CreateEmptyTimeline: %v", err)
	}
	_, err := r.CreateEmptyTimeline(id)
	if err == nil {
		t.Fatal("expected the second create of the same timeline ID to fail")
	}
	if _, ok := err.(*pgerrors.AlreadyExistsError); !ok {
		t.Errorf("expected *pgerrors.AlreadyExistsError, got %T", err)
	}
}

func TestRepository_GetTimeline_ReturnsCachedHandle(t *testing.T) {
	r := openTestRepo(t)
	id := uuid.New()
	created, err := r.CreateEmptyTimeline(id)
	if err != nil {
		t.Fatalf("CreateEmptyTimeline: %v", err)
	}

	got, err := r.GetTimeline(id)
	if err != nil {
		t.Fatalf("GetTimeline: %v", err)
	}
	if got != created {
		t.Error("expected GetTimeline to return the same in-memory handle")
	}
}

func TestRepository_BranchTimeline(t *testing.T) {
	r := openTestRepo(t)
	srcID := uuid.New()
	src, err := r.CreateEmptyTimeline(srcID)
	if err != nil {
		t.Fatalf("CreateEmptyTimeline: %v", err)
	}

	entity := types.RelTag(1, 1, 1, 0)
	g := src.Writer()
	img := make([]byte, types.PageSize)
	if err := g.PutPageImage(entity, 0, 8, img); err != nil {
		t.Fatalf("PutPageImage: %v", err)
	}
	g.AdvanceLastRecordLsn(8)
	g.Release()

	dstID := uuid.New()
	dst, err := r.BranchTimeline(srcID, dstID, 8)
	if err != nil {
		t.Fatalf("BranchTimeline: %v", err)
	}

	ancestorLsn, hasAncestor := dst.GetAncestorLsn()
	if !hasAncestor || ancestorLsn != 8 {
		t.Errorf("expected ancestor lsn 8, got %s (hasAncestor=%v)", ancestorLsn, hasAncestor)
	}

	got, err := dst.GetPageAtLsn(context.Background(), entity, 0, 8)
	if err != nil {
		t.Fatalf("GetPageAtLsn on branch: %v", err)
	}
	if len(got) != types.PageSize {
		t.Errorf("expected a full page from the ancestor, got %d bytes", len(got))
	}
}

func TestRepository_BranchTimeline_DestinationAlreadyExists(t *testing.T) {
	r := openTestRepo(t)
	srcID := uuid.New()
	if _, err := r.CreateEmptyTimeline(srcID); err != nil {
		t.Fatalf("CreateEmptyTimeline: %v", err)
	}
	dstID := uuid.New()
	if _, err := r.CreateEmptyTimeline(dstID); err != nil {
		t.Fatalf("CreateEmptyTimeline(dst): %v", err)
	}

	_, err := r.BranchTimeline(srcID, dstID, 0)
	if err == nil {
		t.Fatal("expected branching onto an existing timeline ID to fail")
	}
	if _, ok := err.(*pgerrors.AlreadyExistsError); !ok {
		t.Errorf("expected *pgerrors.AlreadyExistsError, got %T", err)
	}
}

func TestRepository_ListTimelineIDs(t *testing.T) {
	r := openTestRepo(t)
	id1, id2 := uuid.New(), uuid.New()
	if _, err := r.CreateEmptyTimeline(id1); err != nil {
		t.Fatalf("CreateEmptyTimeline: %v", err)
	}
	if _, err := r.CreateEmptyTimeline(id2); err != nil {
		t.Fatalf("CreateEmptyTimeline: %v", err)
	}

	ids, err := r.ListTimelineIDs()
	if err != nil {
		t.Fatalf("ListTimelineIDs: %v", err)
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[id1] || !seen[id2] {
		t.Errorf("expected both timelines in %v", ids)
	}
}

func TestRepository_GcIteration(t *testing.T) {
	r := openTestRepo(t)
	id := uuid.New()
	tl, err := r.CreateEmptyTimeline(id)
	if err != nil {
		t.Fatalf("CreateEmptyTimeline: %v", err)
	}

	entity := types.RelTag(1, 1, 1, 0)
	g := tl.Writer()
	for _, lsn := range []types.Lsn{8, 16, 24} {
		if err := g.PutPageImage(entity, 0, lsn, make([]byte, types.PageSize)); err != nil {
			t.Fatalf("PutPageImage: %v", err)
		}
		g.AdvanceLastRecordLsn(lsn)
	}
	g.Release()

	result, err := r.GcIteration(context.Background(), nil, 0, false)
	if err != nil {
		t.Fatalf("GcIteration: %v", err)
	}
	if result.TimelinesScanned != 1 {
		t.Errorf("expected 1 timeline scanned, got %d", result.TimelinesScanned)
	}
}

// TestRepository_LoadTimeline_AfterReopen pins the current reopen
// behavior absent any checkpoint: the versioned store's rows survive a
// process restart (pebble itself is durable across Close/reopen), but the
// on-disk metadata file is only written by CreateEmptyTimeline/
// BranchTimeline/Checkpoint — nothing persists disk_consistent_lsn on a
// bare write — so a reloaded timeline's LSN gate resets to whatever
// metadata last recorded, not the in-memory high-water mark at shutdown.
func TestRepository_LoadTimeline_AfterReopen(t *testing.T) {
	dir := t.TempDir()
	redo := walredo.NewLocalManager()

	r1, err := Open(dir, redo)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id := uuid.New()
	tl, err := r1.CreateEmptyTimeline(id)
	if err != nil {
		t.Fatalf("CreateEmptyTimeline: %v", err)
	}
	entity := types.RelTag(2, 2, 2, 0)
	g := tl.Writer()
	if err := g.PutPageImage(entity, 0, 8, make([]byte, types.PageSize)); err != nil {
		t.Fatalf("PutPageImage: %v", err)
	}
	g.AdvanceLastRecordLsn(8)
	g.Release()
	if err := r1.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	r2, err := Open(dir, redo)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	t.Cleanup(func() { r2.Shutdown() })

	reloaded, err := r2.GetTimeline(id)
	if err != nil {
		t.Fatalf("GetTimeline after reopen: %v", err)
	}
	if reloaded.GetLastRecordLsn() != types.InvalidLsn {
		t.Errorf("expected the reloaded gate to start from the last-saved metadata (0), got %s", reloaded.GetLastRecordLsn())
	}
	got, err := reloaded.GetPageAtLsn(context.Background(), entity, 0, 8)
	if err != nil {
		t.Fatalf("GetPageAtLsn after reopen: %v", err)
	}
	if len(got) != types.PageSize {
		t.Errorf("expected the durable page row to survive the reopen, got %d bytes", len(got))
	}
}

// TestRepository_CheckpointPersistsDiskConsistentLsnAcrossReopen proves
// the resave path: once a checkpoint pass runs, the reloaded timeline's
// gate starts from the checkpointed LSN, not 0.
func TestRepository_CheckpointPersistsDiskConsistentLsnAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	redo := walredo.NewLocalManager()

	r1, err := Open(dir, redo)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id := uuid.New()
	tl, err := r1.CreateEmptyTimeline(id)
	if err != nil {
		t.Fatalf("CreateEmptyTimeline: %v", err)
	}
	entity := types.RelTag(2, 2, 3, 0)
	g := tl.Writer()
	if err := g.PutPageImage(entity, 0, 8, make([]byte, types.PageSize)); err != nil {
		t.Fatalf("PutPageImage: %v", err)
	}
	g.AdvanceLastRecordLsn(8)
	g.Release()

	if _, err := tl.ForceCheckpoint(context.Background()); err != nil {
		t.Fatalf("ForceCheckpoint: %v", err)
	}
	if err := r1.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	r2, err := Open(dir, redo)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	t.Cleanup(func() { r2.Shutdown() })

	reloaded, err := r2.GetTimeline(id)
	if err != nil {
		t.Fatalf("GetTimeline after reopen: %v", err)
	}
	if reloaded.GetLastRecordLsn() != types.Lsn(8) {
		t.Errorf("expected the checkpoint to have persisted lsn 8, got %s", reloaded.GetLastRecordLsn())
	}
}
