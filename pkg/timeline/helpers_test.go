package timeline

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/bobboyms/pageserver/pkg/kv"
	"github.com/bobboyms/pageserver/pkg/types"
	"github.com/bobboyms/pageserver/pkg/walredo"
)

// newTestStore opens a fresh pebble store rooted at a temp directory,
// closed automatically at test cleanup.
func newTestStore(t *testing.T) *kv.Store {
	t.Helper()
	s, err := kv.Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newRootTimeline returns a fresh, Active root timeline over its own
// store — the common starting point for every scenario below.
func newRootTimeline(t *testing.T) *Timeline {
	t.Helper()
	tl := New(Config{
		ID:    uuid.New(),
		Dir:   t.TempDir(),
		Store: newTestStore(t),
		Redo:  walredo.NewLocalManager(),
	})
	tl.PrimeLogicalSize(0)
	tl.SetState(Active)
	return tl
}

// branchTimeline returns a child of parent whose store is independent
// (a fresh pebble database), wired with parent as its ancestor at
// ancestorLsn — the in-process equivalent of pkg/repository's
// BranchTimeline, without the directory/metadata bookkeeping that
// package adds.
func branchTimeline(t *testing.T, parent *Timeline, ancestorLsn types.Lsn) *Timeline {
	t.Helper()
	child := New(Config{
		ID:            uuid.New(),
		Dir:           t.TempDir(),
		Store:         newTestStore(t),
		Redo:          walredo.NewLocalManager(),
		Ancestor:      parent,
		AncestorLsn:   ancestorLsn,
		StartLsn:      ancestorLsn,
		LastRecordLsn: ancestorLsn,
	})
	child.PrimeLogicalSize(0)
	child.SetState(Active)
	return child
}

func makeImage(fill byte) []byte {
	img := make([]byte, types.PageSize)
	for i := range img {
		img[i] = fill
	}
	return img
}
