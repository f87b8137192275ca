// sizecache.go is the per-entity metadata snapshot cache of §3/§9: a
// small entity → {size, lsn} map, valid only for queries whose requested
// LSN is >= the snapshot's LSN (§9 "Metadata snapshot cache coherence"),
// invalidated on drop_relish. Backed by github.com/cockroachdb/fifo's
// bounded cache instead of a bare map so a timeline with many thousands
// of relations doesn't grow this index without limit.
package timeline

import (
	"sync"

	"github.com/cockroachdb/fifo"

	"github.com/bobboyms/pageserver/pkg/types"
)

// sizeSnapshot is one cached entry: the most recent non-tombstone size
// known for an entity, and the LSN it was observed at.
type sizeSnapshot struct {
	size uint32
	lsn  types.Lsn
}

const sizeCacheCapacity = 4096

// sizeCache wraps fifo.Cache with the "only valid at or above its own
// LSN" coherence rule from §9.
type sizeCache struct {
	mu    sync.Mutex
	cache *fifo.Cache[types.RelishTag, sizeSnapshot]
}

func newSizeCache() *sizeCache {
	return &sizeCache{cache: fifo.NewCache[types.RelishTag, sizeSnapshot](sizeCacheCapacity)}
}

// lookup returns the cached size iff its snapshot LSN is <= requestedLsn.
func (c *sizeCache) lookup(entity types.RelishTag, requestedLsn types.Lsn) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.cache.Get(entity)
	if !ok || snap.lsn > requestedLsn {
		return 0, false
	}
	return snap.size, true
}

// update records a fresh non-tombstone size observed at lsn.
func (c *sizeCache) update(entity types.RelishTag, size uint32, lsn types.Lsn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Set(entity, sizeSnapshot{size: size, lsn: lsn})
}

// invalidate drops the cached entry — called on drop_relish (§9).
func (c *sizeCache) invalidate(entity types.RelishTag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Delete(entity)
}
