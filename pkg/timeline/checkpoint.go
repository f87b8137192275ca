// checkpoint.go is the local sense of "checkpoint" from §4.4: collapsing
// long delta chains into a materialized Image, not a database-level
// checkpoint. checkpoint_internal walks the Data space entity-by-entity,
// block-by-block, redoing and re-inserting an Image wherever the
// accumulated delta history crosses `distance` bytes.
package timeline

import (
	"context"

	"github.com/bobboyms/pageserver/pkg/keys"
	"github.com/bobboyms/pageserver/pkg/types"
	"github.com/bobboyms/pageserver/pkg/walredo"
)

// dataSpaceUpperBound is one past the last possible Data key: the
// metadata prefix byte, so a scan started with no explicit upper bound
// never wanders into the Metadata key space.
var dataSpaceUpperBound = []byte{0x02}

// CheckpointResult summarizes one materialization pass.
type CheckpointResult struct {
	BlocksScanned      int
	BlocksMaterialized int
}

// Checkpoint runs checkpoint_internal(distance, forced=false): only
// blocks whose delta chain has accumulated at least distance bytes are
// materialized.
func (t *Timeline) Checkpoint(ctx context.Context, distance int64) (CheckpointResult, error) {
	return t.checkpointInternal(ctx, distance)
}

// ForceCheckpoint runs checkpoint_internal(0, true): every eligible delta
// chain is materialized regardless of size, the variant §4.4 says tests
// and GC use for determinism.
func (t *Timeline) ForceCheckpoint(ctx context.Context) (CheckpointResult, error) {
	return t.checkpointInternal(ctx, 0)
}

func (t *Timeline) checkpointInternal(ctx context.Context, distance int64) (CheckpointResult, error) {
	var result CheckpointResult
	top := t.GetLastRecordLsn()

	entity, block, ok, err := t.firstDataEntityBlock()
	if err != nil {
		return result, err
	}
	for ok {
		result.BlocksScanned++
		materialized, err := t.checkpointOneBlock(ctx, entity, block, top, distance)
		if err != nil {
			return result, err
		}
		if materialized {
			result.BlocksMaterialized++
		}

		entity, block, ok, err = t.nextDataEntityBlock(entity, block)
		if err != nil {
			return result, err
		}
	}

	if err := t.SaveMetadata(); err != nil {
		return result, err
	}
	return result, nil
}

// checkpointOneBlock implements §4.4 steps 1-3 for a single (entity,
// block): skip if the top-of-chain entry is already an Image; otherwise
// collect the delta chain and, once history_len crosses distance, redo
// it and insert a fresh Image at the chain's top LSN. The image is written
// under the top delta's own key, so it replaces that row; the older delta
// rows stay and are left to the garbage collector. Per §5, the
// chain is collected without the write lock held, but writeMu is taken
// back for the image insert itself, so the checkpointer never races the
// ingest task's writer guard.
func (t *Timeline) checkpointOneBlock(ctx context.Context, entity types.RelishTag, block types.BlockNumber, top types.Lsn, distance int64) (bool, error) {
	w, err := newChainWalker(t.store, t.pending, entity, block, top)
	if err != nil {
		return false, err
	}
	defer w.Close()

	var historyLen int64
	var chainTopLsn types.Lsn
	var base []byte
	var reversed []pendingEntry
	first := true

	for {
		lsn, v, ok, err := w.next()
		if err != nil {
			return false, err
		}
		if !ok {
			// Ran off the end without a base: leave it for GetPageAtLsn
			// to surface as corruption on an actual read; checkpointing
			// a gap isn't itself an error.
			return false, nil
		}
		if first {
			first = false
			chainTopLsn = lsn
			if v.isImage {
				return false, nil
			}
		}
		if v.isImage {
			base = v.image
			break
		}
		historyLen += int64(len(v.payload))
		reversed = append(reversed, pendingEntry{lsn: lsn, version: v})
		if v.willInit {
			break
		}
	}

	if historyLen < distance {
		return false, nil
	}

	records := make([]walredo.Record, len(reversed))
	for i, e := range reversed {
		records[len(reversed)-1-i] = e.version.asRecord(e.lsn)
	}

	img, err := t.redo.RequestRedo(ctx, entity, block, chainTopLsn, base, records)
	if err != nil {
		return false, err
	}

	raw, err := encodeImage(img)
	if err != nil {
		return false, err
	}
	dkey := keys.EncodeDataKey(entity, block, chainTopLsn)
	t.writeMu.Lock()
	err = t.store.Put(dkey, raw)
	t.writeMu.Unlock()
	if err != nil {
		return false, err
	}
	return true, nil
}

// firstDataEntityBlock locates the first (entity, block) pair present in
// the Data key space, the checkpoint scan's starting point.
func (t *Timeline) firstDataEntityBlock() (types.RelishTag, types.BlockNumber, bool, error) {
	it, err := t.store.NewIter(keys.EncodeDataKey(types.RelishTag{}, 0, 0), dataSpaceUpperBound)
	if err != nil {
		return types.RelishTag{}, 0, false, err
	}
	defer it.Close()
	if !it.First() {
		return types.RelishTag{}, 0, false, nil
	}
	entity, block, _, err := keys.DecodeDataKey(it.Key())
	if err != nil {
		return types.RelishTag{}, 0, false, err
	}
	return entity, block, true, nil
}

// nextDataEntityBlock jumps to the next (entity, block) by resetting the
// lower bound to one past the current block's prefix (§4.4 step 4).
func (t *Timeline) nextDataEntityBlock(entity types.RelishTag, block types.BlockNumber) (types.RelishTag, types.BlockNumber, bool, error) {
	lower := keys.EntityBlockUpperBound(entity, block)
	it, err := t.store.NewIter(lower, dataSpaceUpperBound)
	if err != nil {
		return types.RelishTag{}, 0, false, err
	}
	defer it.Close()
	if !it.First() {
		return types.RelishTag{}, 0, false, nil
	}
	nextEntity, nextBlock, _, err := keys.DecodeDataKey(it.Key())
	if err != nil {
		return types.RelishTag{}, 0, false, err
	}
	return nextEntity, nextBlock, true, nil
}
