// gc.go is the per-timeline deletion pass of §4.5 step 7: the source
// leaves the per-row sweep unimplemented, so this treats whole-key
// deletion the way the spec prescribes — for each (entity, block),
// retain the latest row <= each retain LSN plus every row >= cutoff, and
// drop the rest.
package timeline

import (
	"github.com/bobboyms/pageserver/pkg/keys"
	"github.com/bobboyms/pageserver/pkg/types"
)

// GCStats counts what one GCTimeline pass actually removed.
type GCStats struct {
	DataVersionsDeleted int64
	MetadataRowsDeleted int64
}

// GCTimeline implements §4.5 step 7 against this timeline's own store —
// it never looks at ancestors or descendants; the caller (pkg/gc) is
// responsible for computing retainLsns (the cutoff plus every child's
// branch point) before calling in.
func (t *Timeline) GCTimeline(retainLsns []types.Lsn, cutoff types.Lsn) (GCStats, error) {
	var stats GCStats

	dataStats, err := t.gcDataSpace(retainLsns, cutoff)
	if err != nil {
		return stats, err
	}
	stats.DataVersionsDeleted = dataStats

	metaStats, err := t.gcMetadataSpace(retainLsns, cutoff)
	if err != nil {
		return stats, err
	}
	stats.MetadataRowsDeleted = metaStats

	return stats, nil
}

// gcDataSpace sweeps the Data key space one (entity, block) group at a
// time.
func (t *Timeline) gcDataSpace(retainLsns []types.Lsn, cutoff types.Lsn) (int64, error) {
	var deleted int64

	entity, block, ok, err := t.firstDataEntityBlock()
	if err != nil {
		return deleted, err
	}
	for ok {
		lower, upper := keys.DataKeyRange(entity, block, ^types.Lsn(0))
		n, err := t.sweepGroup(lower, upper, retainLsns, cutoff, func(key []byte) error {
			return t.store.Delete(key)
		})
		if err != nil {
			return deleted, err
		}
		deleted += n

		entity, block, ok, err = t.nextDataEntityBlock(entity, block)
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// gcMetadataSpace sweeps the Metadata key space one entity at a time,
// using the same retain rule — a metadata row is just as much a
// "version" as a Data row for GC's purposes.
func (t *Timeline) gcMetadataSpace(retainLsns []types.Lsn, cutoff types.Lsn) (int64, error) {
	var deleted int64

	it, err := t.store.NewIter(keys.EncodeMetadataKey(types.RelishTag{}, 0), nil)
	if err != nil {
		return deleted, err
	}
	if !it.First() {
		it.Close()
		return deleted, nil
	}
	entity, _, err := keys.DecodeMetadataKey(it.Key())
	it.Close()
	if err != nil {
		return deleted, err
	}

	for {
		lower := keys.MetadataPrefixLowerBound(entity)
		upper := keys.MetadataPrefixUpperBound(entity)
		n, err := t.sweepGroup(lower, upper, retainLsns, cutoff, func(key []byte) error {
			return t.store.Delete(key)
		})
		if err != nil {
			return deleted, err
		}
		deleted += n

		next, err := t.store.NewIter(upper, nil)
		if err != nil {
			return deleted, err
		}
		if !next.First() {
			next.Close()
			break
		}
		nextEntity, _, err := keys.DecodeMetadataKey(next.Key())
		next.Close()
		if err != nil {
			return deleted, err
		}
		entity = nextEntity
	}
	return deleted, nil
}

// sweepGroup applies the retain rule to one ordered group of keys
// sharing a (entity[, block]) prefix: keep the newest key at or below
// each retain LSN, and everything at or above cutoff; delete the rest.
func (t *Timeline) sweepGroup(lower, upper []byte, retainLsns []types.Lsn, cutoff types.Lsn, del func([]byte) error) (int64, error) {
	it, err := t.store.NewIter(lower, upper)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	type entry struct {
		key []byte
		lsn types.Lsn
	}
	var all []entry
	for ok := it.First(); ok; ok = it.Next() {
		lsn, derr := lsnOfKey(it.Key())
		if derr != nil {
			return 0, derr
		}
		k := append([]byte{}, it.Key()...)
		all = append(all, entry{key: k, lsn: lsn})
	}
	if len(all) == 0 {
		return 0, nil
	}

	keep := make([]bool, len(all))
	for _, r := range retainLsns {
		best := -1
		for i, e := range all {
			if e.lsn <= r {
				best = i
			} else {
				break
			}
		}
		if best >= 0 {
			keep[best] = true
		}
	}
	for i, e := range all {
		if e.lsn >= cutoff {
			keep[i] = true
		}
	}

	var deleted int64
	for i, e := range all {
		if keep[i] {
			continue
		}
		if err := del(e.key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func lsnOfKey(key []byte) (types.Lsn, error) {
	if keys.IsDataKey(key) {
		_, _, lsn, err := keys.DecodeDataKey(key)
		return lsn, err
	}
	_, lsn, err := keys.DecodeMetadataKey(key)
	return lsn, err
}
