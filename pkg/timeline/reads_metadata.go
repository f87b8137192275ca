// reads_metadata.go implements §4.2's metadata-index reads:
// get_relish_size, get_rel_exists, list_rels and list_nonrels.
package timeline

import (
	"github.com/bobboyms/pageserver/pkg/keys"
	"github.com/bobboyms/pageserver/pkg/types"
)

// GetRelishSize is get_relish_size(entity, requested_lsn): the fast path
// consults the size snapshot cache (§3); otherwise it reverse-scans the
// Metadata index. A tombstone or an empty range both read as "not
// present" (0, false).
func (t *Timeline) GetRelishSize(entity types.RelishTag, requestedLsn types.Lsn) (uint32, bool, error) {
	return t.getRelishSize(entity, requestedLsn)
}

func (t *Timeline) getRelishSize(entity types.RelishTag, requestedLsn types.Lsn) (uint32, bool, error) {
	if size, ok := t.sizes.lookup(entity, requestedLsn); ok {
		return size, true, nil
	}

	lower, upper := keys.MetadataKeyRange(entity, requestedLsn)
	it, err := t.store.NewIter(lower, upper)
	if err != nil {
		return 0, false, err
	}
	defer it.Close()

	if !it.Last() {
		return 0, false, nil
	}
	size, ok := decodeMetadataValue(it.Value())
	if !ok {
		return 0, false, nil
	}
	return size, true, nil
}

// GetRelExists is get_rel_exists(entity, requested_lsn): true iff the
// entity has a non-tombstone metadata row visible at requestedLsn.
func (t *Timeline) GetRelExists(entity types.RelishTag, requestedLsn types.Lsn) (bool, error) {
	_, ok, err := t.getRelishSize(entity, requestedLsn)
	return ok, err
}

// ListRels is list_rels(spcnode, dbnode, lsn): every relation fork in
// (spcNode, dbNode) with a non-tombstone row visible at lsn — §4.2's
// "reverse-per-entity two-phase scan".
func (t *Timeline) ListRels(spcNode, dbNode uint32, lsn types.Lsn) ([]types.RelishTag, error) {
	from, till := keys.RelRangeBounds(spcNode, dbNode)
	return t.listEntities(from, till, lsn)
}

// ListNonrels is list_nonrels(lsn): the non-relational analogue of
// ListRels.
func (t *Timeline) ListNonrels(lsn types.Lsn) ([]types.RelishTag, error) {
	from, till := keys.NonRelRangeBounds()
	return t.listEntities(from, till, lsn)
}

// listAllRels is the internal, filter-free analogue of ListRels used by
// GetCurrentLogicalSizeNonIncremental: every relation fork across every
// tablespace/database, not just one.
func (t *Timeline) listAllRels(lsn types.Lsn) ([]types.RelishTag, error) {
	from := types.RelishTag{Kind: types.RelationFork}
	till := types.RelishTag{Kind: types.RelationFork, SpcNode: ^uint32(0), DbNode: ^uint32(0), RelNode: ^uint32(0), ForkNum: ^uint8(0)}
	return t.listEntities(from, till, lsn)
}

// listEntities implements §4.2's per-entity walk: find the newest
// metadata row per entity within [from,till]; if its LSN is above the
// requested LSN, fall back to a bounded scan for the last row <= lsn;
// include the entity iff that row is non-tombstone. Each entity's result
// narrows the upper bound to jump to the next lower entity.
func (t *Timeline) listEntities(from, till types.RelishTag, lsn types.Lsn) ([]types.RelishTag, error) {
	upper := keys.MetadataPrefixUpperBound(till)
	lower := keys.MetadataPrefixLowerBound(from)

	var out []types.RelishTag
	for {
		it, err := t.store.NewIter(lower, upper)
		if err != nil {
			return nil, err
		}
		if !it.Last() {
			it.Close()
			break
		}
		entity, rowLsn, err := keys.DecodeMetadataKey(it.Key())
		if err != nil {
			it.Close()
			return nil, err
		}

		var ok bool
		if rowLsn <= lsn {
			_, ok = decodeMetadataValue(it.Value())
			it.Close()
		} else {
			it.Close()
			_, ok, err = t.getRelishSize(entity, lsn)
			if err != nil {
				return nil, err
			}
		}

		if ok {
			out = append(out, entity)
		}

		// Jump to the next lower entity: exclusive upper bound at
		// (entity, 0).
		upper = keys.MetadataPrefixLowerBound(entity)
	}
	return out, nil
}
