package walingest

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/bobboyms/pageserver/pkg/kv"
	"github.com/bobboyms/pageserver/pkg/timeline"
	"github.com/bobboyms/pageserver/pkg/types"
	"github.com/bobboyms/pageserver/pkg/walredo"
)

// newTestTimeline builds a root timeline over a fresh pebble store in a
// temp directory, primed and flipped Active, ready for a writer guard or
// an ingest Task to drive.
func newTestTimeline(t *testing.T) *timeline.Timeline {
	t.Helper()

	dir := t.TempDir()
	store, err := kv.Open(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return newTestTimelineAt(t, types.InvalidLsn)
}

// newTestTimelineAt is newTestTimeline but seeds the LSN gate at lastLsn,
// for tests that need a non-zero starting point (e.g. Task.Run, which
// refuses to start ingest on a timeline with no base).
func newTestTimelineAt(t *testing.T, lastLsn types.Lsn) *timeline.Timeline {
	t.Helper()

	dir := t.TempDir()
	store, err := kv.Open(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tl := timeline.New(timeline.Config{
		ID:            uuid.New(),
		Dir:           dir,
		Store:         store,
		Redo:          walredo.NewLocalManager(),
		StartLsn:      types.InvalidLsn,
		LastRecordLsn: lastLsn,
	})
	tl.PrimeLogicalSize(0)
	tl.SetState(timeline.Active)
	return tl
}
