// pending.go is the PageVersions in-memory layer from
// original_source/layered_repository/page_versions.rs (SPEC_FULL.md
// supplement 1): an ordered index of not-yet-durable versions, consulted
// before the underlying KV engine so a read sees a write from the same
// in-flight batch even though every write here is already pebble-durable
// on return (§4.3) — it exists so a reader racing the writer within the
// same advance_last_record_lsn batch sees a consistent chain instead of a
// partially-applied one.
package timeline

import (
	"sort"
	"sync"

	"github.com/bobboyms/pageserver/pkg/types"
)

type pendingKey struct {
	entity types.RelishTag
	block  types.BlockNumber
}

type pendingEntry struct {
	lsn     types.Lsn
	version pageVersion
}

// pendingVersions buffers writes between the moment they land in the KV
// engine and the moment advance_last_record_lsn publishes their LSN,
// draining entries for the gate's new floor once it's safe to.
type pendingVersions struct {
	mu      sync.Mutex
	entries map[pendingKey][]pendingEntry
}

func newPendingVersions() *pendingVersions {
	return &pendingVersions{entries: make(map[pendingKey][]pendingEntry)}
}

// add records a version ahead of the LSN gate. Callers hold the write
// lock, so entries for one (entity,block) arrive in increasing LSN order.
func (p *pendingVersions) add(entity types.RelishTag, block types.BlockNumber, lsn types.Lsn, v pageVersion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := pendingKey{entity, block}
	p.entries[k] = append(p.entries[k], pendingEntry{lsn: lsn, version: v})
}

// collect returns every pending entry for (entity,block) with lsn <= max,
// newest first.
func (p *pendingVersions) collect(entity types.RelishTag, block types.BlockNumber, max types.Lsn) []pendingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	src := p.entries[pendingKey{entity, block}]
	out := make([]pendingEntry, 0, len(src))
	for _, e := range src {
		if e.lsn <= max {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].lsn > out[j].lsn })
	return out
}

// drainUpTo discards every pending entry whose LSN is now durably visible
// through the KV engine and reflected in disk_consistent_lsn — called
// after advance_last_record_lsn publishes the gate.
func (p *pendingVersions) drainUpTo(lsn types.Lsn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, entries := range p.entries {
		kept := entries[:0]
		for _, e := range entries {
			if e.lsn > lsn {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(p.entries, k)
		} else {
			p.entries[k] = kept
		}
	}
}
