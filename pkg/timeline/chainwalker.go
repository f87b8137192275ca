// chainwalker.go merges the pendingVersions layer (not yet durable) with
// the durable KV store into one descending-LSN cursor over a single
// (entity, block)'s Data keys — the primitive §4.2's reverse-scan
// algorithm and §4.4's checkpoint materialization are both built from.
package timeline

import (
	"github.com/bobboyms/pageserver/pkg/keys"
	"github.com/bobboyms/pageserver/pkg/kv"
	"github.com/bobboyms/pageserver/pkg/types"
)

type chainWalker struct {
	pending    []pendingEntry
	pendingIdx int

	iter      *kv.Iterator
	entity    types.RelishTag
	block     types.BlockNumber
	iterAtEnd bool
	started   bool
}

func newChainWalker(store *kv.Store, pending *pendingVersions, entity types.RelishTag, block types.BlockNumber, maxLsn types.Lsn) (*chainWalker, error) {
	lower, upper := keys.DataKeyRange(entity, block, maxLsn)
	iter, err := store.NewIter(lower, upper)
	if err != nil {
		return nil, err
	}
	return &chainWalker{
		pending: pending.collect(entity, block, maxLsn),
		iter:    iter,
		entity:  entity,
		block:   block,
	}, nil
}

func (w *chainWalker) Close() error {
	return w.iter.Close()
}

// next returns the next version in descending LSN order, merging the
// pending slice (already newest-first) with the store iterator.
func (w *chainWalker) next() (types.Lsn, pageVersion, bool, error) {
	if !w.started {
		w.started = true
		w.iterAtEnd = !w.iter.Last()
	}

	for {
		havePending := w.pendingIdx < len(w.pending)
		haveIter := !w.iterAtEnd

		if !havePending && !haveIter {
			return 0, pageVersion{}, false, nil
		}

		// Every pending entry is, by construction, also already durably
		// written to the store (§4.3: puts are pebble-durable on
		// return), so a pending LSN and a store LSN can coincide. When
		// they do, skip the store's copy and yield the pending one once
		// — otherwise the same write would surface twice in the chain.
		if havePending && haveIter {
			_, _, iterLsn, err := keys.DecodeDataKey(w.iter.Key())
			if err != nil {
				return 0, pageVersion{}, false, err
			}
			if iterLsn == w.pending[w.pendingIdx].lsn {
				w.iterAtEnd = !w.iter.Prev()
				haveIter = !w.iterAtEnd
			}
		}

		var takeIter bool
		switch {
		case havePending && !haveIter:
			takeIter = false
		case !havePending && haveIter:
			takeIter = true
		default:
			_, _, iterLsn, err := keys.DecodeDataKey(w.iter.Key())
			if err != nil {
				return 0, pageVersion{}, false, err
			}
			takeIter = iterLsn > w.pending[w.pendingIdx].lsn
		}

		if takeIter {
			_, _, lsn, err := keys.DecodeDataKey(w.iter.Key())
			if err != nil {
				return 0, pageVersion{}, false, err
			}
			v, err := decodePageVersion(w.iter.Value())
			w.iterAtEnd = !w.iter.Prev()
			if err != nil {
				return 0, pageVersion{}, false, err
			}
			return lsn, v, true, nil
		}

		e := w.pending[w.pendingIdx]
		w.pendingIdx++
		return e.lsn, e.version, true, nil
	}
}
