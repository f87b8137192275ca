// Package keys implements the order-preserving byte encoding of §3: the
// sole contents of the underlying ordered KV engine are Data(entity,
// block, lsn) and Metadata(entity, lsn) keys, encoded so that plain
// byte-wise comparison reproduces entity < block < lsn.
package keys

import (
	"encoding/binary"
	"fmt"

	"github.com/bobboyms/pageserver/pkg/types"
)

// Key space prefixes. Data sorts before Metadata only because that's the
// order they're declared in §3 — the two families never interleave since
// every key carries one of these two leading bytes.
const (
	dataPrefix     = 0x01
	metadataPrefix = 0x02
)

// DataKeyLen is the fixed width of a Data(entity, block, lsn) key.
const DataKeyLen = 1 + types.RelishTagSize + 4 + 8

// MetadataKeyLen is the fixed width of a Metadata(entity, lsn) key.
const MetadataKeyLen = 1 + types.RelishTagSize + 8

// EncodeDataKey builds the Data(entity, block, lsn) key.
func EncodeDataKey(entity types.RelishTag, block types.BlockNumber, lsn types.Lsn) []byte {
	buf := make([]byte, DataKeyLen)
	buf[0] = dataPrefix
	copy(buf[1:], entity.Bytes())
	off := 1 + types.RelishTagSize
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(block))
	binary.BigEndian.PutUint64(buf[off+4:off+12], uint64(lsn))
	return buf
}

// DecodeDataKey is the inverse of EncodeDataKey. Returns an error if buf
// isn't a well-formed Data key — the corruption condition of §7.
func DecodeDataKey(buf []byte) (entity types.RelishTag, block types.BlockNumber, lsn types.Lsn, err error) {
	if len(buf) != DataKeyLen || buf[0] != dataPrefix {
		return types.RelishTag{}, 0, 0, fmt.Errorf("keys: not a data key (len=%d)", len(buf))
	}
	entity, err = types.DecodeRelishTag(buf[1 : 1+types.RelishTagSize])
	if err != nil {
		return types.RelishTag{}, 0, 0, err
	}
	off := 1 + types.RelishTagSize
	block = types.BlockNumber(binary.BigEndian.Uint32(buf[off : off+4]))
	lsn = types.Lsn(binary.BigEndian.Uint64(buf[off+4 : off+12]))
	return entity, block, lsn, nil
}

// IsDataKey reports whether buf looks like a Data key.
func IsDataKey(buf []byte) bool {
	return len(buf) == DataKeyLen && buf[0] == dataPrefix
}

// EncodeMetadataKey builds the Metadata(entity, lsn) key.
func EncodeMetadataKey(entity types.RelishTag, lsn types.Lsn) []byte {
	buf := make([]byte, MetadataKeyLen)
	buf[0] = metadataPrefix
	copy(buf[1:], entity.Bytes())
	off := 1 + types.RelishTagSize
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(lsn))
	return buf
}

// DecodeMetadataKey is the inverse of EncodeMetadataKey.
func DecodeMetadataKey(buf []byte) (entity types.RelishTag, lsn types.Lsn, err error) {
	if len(buf) != MetadataKeyLen || buf[0] != metadataPrefix {
		return types.RelishTag{}, 0, fmt.Errorf("keys: not a metadata key (len=%d)", len(buf))
	}
	entity, err = types.DecodeRelishTag(buf[1 : 1+types.RelishTagSize])
	if err != nil {
		return types.RelishTag{}, 0, err
	}
	off := 1 + types.RelishTagSize
	lsn = types.Lsn(binary.BigEndian.Uint64(buf[off : off+8]))
	return entity, lsn, nil
}

// IsMetadataKey reports whether buf looks like a Metadata key.
func IsMetadataKey(buf []byte) bool {
	return len(buf) == MetadataKeyLen && buf[0] == metadataPrefix
}

// DataKeyRange returns [lower, upper) bounding every Data key for
// (entity, block) with lsn in [0, maxLsn]. upper is exclusive, built by
// encoding maxLsn+1. That only overflows for ^uint64(0), where the
// overflow-to-0 value would yield an empty range, so that case uses
// EntityBlockUpperBound instead.
func DataKeyRange(entity types.RelishTag, block types.BlockNumber, maxLsn types.Lsn) (lower, upper []byte) {
	lower = EncodeDataKey(entity, block, 0)
	upper = EncodeDataKey(entity, block, maxLsn+1)
	if maxLsn == types.Lsn(^uint64(0)) {
		upper = EntityBlockUpperBound(entity, block)
	}
	return lower, upper
}

// EntityBlockPrefix returns the fixed prefix shared by every Data key of
// (entity, block) — used to detect "left the entity prefix" while
// reverse-scanning (§4.2 step 2, the corruption condition of invariant 5).
func EntityBlockPrefix(entity types.RelishTag, block types.BlockNumber) []byte {
	k := EncodeDataKey(entity, block, 0)
	return k[:len(k)-8]
}

// EntityBlockUpperBound returns the exclusive upper bound one past the
// last possible Data key of (entity, block).
func EntityBlockUpperBound(entity types.RelishTag, block types.BlockNumber) []byte {
	return EncodeDataKey(entity, block+1, 0)
}

// MetadataKeyRange returns [lower, upper) bounding every Metadata key for
// entity with lsn in [0, maxLsn]. Mirrors DataKeyRange's saturation guard:
// maxLsn+1 only overflows for ^uint64(0), for which the range is already
// "everything", so that case uses an explicit upper bound instead of the
// overflow-to-0 value that would otherwise yield an empty range.
func MetadataKeyRange(entity types.RelishTag, maxLsn types.Lsn) (lower, upper []byte) {
	lower = EncodeMetadataKey(entity, 0)
	if maxLsn == types.Lsn(^uint64(0)) {
		upper = MetadataPrefixUpperBound(entity)
		return lower, upper
	}
	upper = EncodeMetadataKey(entity, maxLsn+1)
	return lower, upper
}

// EntityMetadataPrefix is the fixed prefix shared by every Metadata key of
// entity.
func EntityMetadataPrefix(entity types.RelishTag) []byte {
	k := EncodeMetadataKey(entity, 0)
	return k[:len(k)-8]
}

// RelRangeBounds returns the inclusive [from, till] entity range used by
// list_rels to enumerate every relation fork in (spcNode, dbNode),
// regardless of relNode/forkNum.
func RelRangeBounds(spcNode, dbNode uint32) (from, till types.RelishTag) {
	from = types.RelishTag{Kind: types.RelationFork, SpcNode: spcNode, DbNode: dbNode}
	till = types.RelishTag{Kind: types.RelationFork, SpcNode: spcNode, DbNode: dbNode, RelNode: ^uint32(0), ForkNum: ^uint8(0)}
	return from, till
}

// NonRelRangeBounds returns the inclusive [from, till] entity range covering every
// non-relational object, used by list_nonrels.
func NonRelRangeBounds() (from, till types.RelishTag) {
	from = types.RelishTag{Kind: types.NonRelObject}
	till = types.RelishTag{Kind: types.NonRelObject, NonRel: ^types.NonRelKind(0), SegNo: ^uint32(0)}
	return from, till
}

// MetadataPrefixUpperBound returns the exclusive upper bound of the
// metadata-key range for entities up to and including till (inclusive),
// used to bound the per-entity walk in ListRels/ListNonrels.
func MetadataPrefixUpperBound(till types.RelishTag) []byte {
	k := EncodeMetadataKey(till, ^types.Lsn(0))
	return append(k, 0x00)
}

// MetadataPrefixLowerBound returns the inclusive lower bound of the
// metadata-key range starting at from.
func MetadataPrefixLowerBound(from types.RelishTag) []byte {
	return EncodeMetadataKey(from, 0)
}
