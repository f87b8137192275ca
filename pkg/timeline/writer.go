// writer.go is the scoped writer of §4.3: the single-writer guard taken
// BEFORE any store access (§5/§9), exposing put_wal_record,
// put_page_image, put_truncation, drop_relish and
// advance_last_record_lsn.
package timeline

import (
	pgerrors "github.com/bobboyms/pageserver/pkg/errors"
	"github.com/bobboyms/pageserver/pkg/keys"
	"github.com/bobboyms/pageserver/pkg/types"
)

// WriteGuard is the scoped handle acquired by Timeline.Writer(); only one
// may be outstanding per timeline at a time, enforced by writeMu.
type WriteGuard struct {
	t *Timeline
}

// Writer acquires the single-writer lock and returns a scoped guard.
// Release MUST be called exactly once, typically via defer.
func (t *Timeline) Writer() *WriteGuard {
	t.writeMu.Lock()
	return &WriteGuard{t: t}
}

// Release gives up the writer lock.
func (g *WriteGuard) Release() {
	g.t.writeMu.Unlock()
}

func validateWrite(entity types.RelishTag, block types.BlockNumber, lsn types.Lsn) error {
	if !lsn.IsAligned() {
		return &pgerrors.InvalidRequestError{Reason: "lsn is not 8-byte aligned"}
	}
	if !entity.IsBlocky() && block != 0 {
		return &pgerrors.InvalidRequestError{Reason: "block must be 0 for a non-blocky entity"}
	}
	return nil
}

// maybeExtendSize applies the size-extension side effect shared by
// put_wal_record and put_page_image (§4.3): if block >= the entity's
// cached size, bump Metadata(entity,lsn) to block+1 and refresh the
// snapshot cache.
func (g *WriteGuard) maybeExtendSize(entity types.RelishTag, block types.BlockNumber, lsn types.Lsn) error {
	cached, ok, err := g.t.getRelishSize(entity, lsn)
	if err != nil {
		return err
	}
	newSize := uint32(block) + 1
	if ok && newSize <= cached {
		return nil
	}
	mkey := keys.EncodeMetadataKey(entity, lsn)
	if err := g.t.store.Put(mkey, encodeMetadataValue(newSize)); err != nil {
		return err
	}
	g.t.sizes.update(entity, newSize, lsn)
	g.t.logicalSize.Add(int64(newSize-cached) * types.PageSize)
	return nil
}

// PutWalRecord is put_wal_record(lsn, entity, block, rec): Data(entity,
// block, lsn) = Delta(rec), plus the size-extension side effect.
func (g *WriteGuard) PutWalRecord(entity types.RelishTag, block types.BlockNumber, lsn types.Lsn, willInit bool, payload []byte) error {
	if err := validateWrite(entity, block, lsn); err != nil {
		return err
	}
	v := pageVersion{willInit: willInit, payload: payload}
	dkey := keys.EncodeDataKey(entity, block, lsn)
	if err := g.t.store.Put(dkey, encodeDelta(willInit, payload)); err != nil {
		return err
	}
	g.t.pending.add(entity, block, lsn, v)
	g.t.diskConsistentLsn.Store(uint64(lsn))
	return g.maybeExtendSize(entity, block, lsn)
}

// PutPageImage is put_page_image(lsn, entity, block, img): Data(entity,
// block, lsn) = Image(img), plus the size-extension side effect.
func (g *WriteGuard) PutPageImage(entity types.RelishTag, block types.BlockNumber, lsn types.Lsn, img []byte) error {
	if err := validateWrite(entity, block, lsn); err != nil {
		return err
	}
	raw, err := encodeImage(img)
	if err != nil {
		return &pgerrors.InvalidRequestError{Reason: err.Error()}
	}
	dkey := keys.EncodeDataKey(entity, block, lsn)
	if err := g.t.store.Put(dkey, raw); err != nil {
		return err
	}
	g.t.pending.add(entity, block, lsn, pageVersion{isImage: true, image: img})
	g.t.diskConsistentLsn.Store(uint64(lsn))
	return g.maybeExtendSize(entity, block, lsn)
}

// PutTruncation is put_truncation(lsn, entity, new_size): Metadata(entity,
// lsn) = Some(new_size). Older Data rows above new_size remain and are
// logically dead (§4.3); GC selects rows by LSN only, so the truncation
// does not make it remove them.
func (g *WriteGuard) PutTruncation(entity types.RelishTag, lsn types.Lsn, newSize uint32) error {
	if !lsn.IsAligned() {
		return &pgerrors.InvalidRequestError{Reason: "lsn is not 8-byte aligned"}
	}
	cached, _, err := g.t.getRelishSize(entity, lsn)
	if err != nil {
		return err
	}
	mkey := keys.EncodeMetadataKey(entity, lsn)
	if err := g.t.store.Put(mkey, encodeMetadataValue(newSize)); err != nil {
		return err
	}
	g.t.sizes.update(entity, newSize, lsn)
	g.t.logicalSize.Add((int64(newSize) - int64(cached)) * types.PageSize)
	g.t.diskConsistentLsn.Store(uint64(lsn))
	return nil
}

// DropRelish is drop_relish(lsn, entity): Metadata(entity, lsn) = None, a
// tombstone. From lsn onward GetRelishSize, GetRelExists, ListRels and
// ListNonrels treat the entity as absent. GetPageAtLsn does not consult
// the tombstone: older Data entries of the entity stay readable through
// it.
func (g *WriteGuard) DropRelish(entity types.RelishTag, lsn types.Lsn) error {
	if !lsn.IsAligned() {
		return &pgerrors.InvalidRequestError{Reason: "lsn is not 8-byte aligned"}
	}
	cached, ok, err := g.t.getRelishSize(entity, lsn)
	if err != nil {
		return err
	}
	mkey := keys.EncodeMetadataKey(entity, lsn)
	if err := g.t.store.Put(mkey, []byte{}); err != nil {
		return err
	}
	g.t.sizes.invalidate(entity)
	if ok {
		g.t.logicalSize.Add(-int64(cached) * types.PageSize)
	}
	g.t.diskConsistentLsn.Store(uint64(lsn))
	return nil
}

// AdvanceLastRecordLsn is advance_last_record_lsn(new_lsn): bumps the LSN
// gate and wakes every wait_lsn waiter whose target is now satisfied,
// then drains the pending layer up to the newly published floor.
func (g *WriteGuard) AdvanceLastRecordLsn(newLsn types.Lsn) {
	prev := g.t.gate.load()
	g.t.prevRecordLsn.Store(uint64(prev))
	g.t.hasPrevRecordLsn.Store(true)
	g.t.gate.advance(newLsn)
	g.t.pending.drainUpTo(newLsn)
}
