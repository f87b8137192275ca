package types

import (
	"encoding/binary"
	"fmt"
)

// RelishKind distinguishes a blocky relation fork from a non-relational
// physical object (checkpoint blob, SLRU segment, ...).
type RelishKind uint8

const (
	// RelationFork is a page-addressable relation fork: indexable by block.
	RelationFork RelishKind = iota
	// NonRelObject is a single-valued, non-blocky object (block must be 0).
	NonRelObject
)

// NonRelKind enumerates the non-relational physical object subtypes this
// pageserver is willing to store. Left open-ended on purpose: the WAL
// decoder (out of scope, §1) is the only thing that manufactures these.
type NonRelKind uint8

const (
	NonRelCheckpoint NonRelKind = iota
	NonRelSlruSegment
	NonRelTwoPhase
	NonRelControlFile
)

// RelishTag is the entity identifier of §3: an algebraic identifier of a
// relation fork or a non-relational physical object. It is totally
// ordered and the ordering is preserved by Bytes(), so that keys built
// from RelishTag sort the way Compare says they should.
type RelishTag struct {
	Kind RelishKind

	// Relation fork fields (Kind == RelationFork).
	SpcNode uint32
	DbNode  uint32
	RelNode uint32
	ForkNum uint8

	// Non-relational fields (Kind == NonRelObject).
	NonRel NonRelKind
	SegNo  uint32
}

// IsBlocky reports whether this entity may be addressed by block number.
// Non-relational objects are single-valued: callers MUST pass block 0.
func (t RelishTag) IsBlocky() bool {
	return t.Kind == RelationFork
}

// Compare returns -1/0/1 the way the rest of the codebase's ordered types
// do, comparing tablespace, then database, then relation, then fork for
// relation tags, and kind then segment for non-relational tags. Relation
// tags sort before non-relational tags.
func (t RelishTag) Compare(other RelishTag) int {
	if t.Kind != other.Kind {
		if t.Kind < other.Kind {
			return -1
		}
		return 1
	}
	if t.Kind == RelationFork {
		if c := cmpUint32(t.SpcNode, other.SpcNode); c != 0 {
			return c
		}
		if c := cmpUint32(t.DbNode, other.DbNode); c != 0 {
			return c
		}
		if c := cmpUint32(t.RelNode, other.RelNode); c != 0 {
			return c
		}
		return cmpUint8(t.ForkNum, other.ForkNum)
	}
	if c := cmpUint8(uint8(t.NonRel), uint8(other.NonRel)); c != 0 {
		return c
	}
	return cmpUint32(t.SegNo, other.SegNo)
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint8(a, b uint8) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// RelishTagSize is the fixed width of the order-preserving encoding
// produced by Bytes(). Every component is big-endian so that byte-wise
// lexicographic comparison matches Compare().
const RelishTagSize = 1 + 4 + 4 + 4 + 1 + 1 + 4

// Bytes encodes the tag into RelishTagSize order-preserving bytes. Used as
// the "entity" component of every VersionedStore key (§3).
func (t RelishTag) Bytes() []byte {
	buf := make([]byte, RelishTagSize)
	buf[0] = byte(t.Kind)
	binary.BigEndian.PutUint32(buf[1:5], t.SpcNode)
	binary.BigEndian.PutUint32(buf[5:9], t.DbNode)
	binary.BigEndian.PutUint32(buf[9:13], t.RelNode)
	buf[13] = t.ForkNum
	buf[14] = byte(t.NonRel)
	binary.BigEndian.PutUint32(buf[15:19], t.SegNo)
	return buf
}

// DecodeRelishTag is the inverse of Bytes.
func DecodeRelishTag(buf []byte) (RelishTag, error) {
	if len(buf) < RelishTagSize {
		return RelishTag{}, fmt.Errorf("relish tag: short buffer (%d < %d)", len(buf), RelishTagSize)
	}
	return RelishTag{
		Kind:    RelishKind(buf[0]),
		SpcNode: binary.BigEndian.Uint32(buf[1:5]),
		DbNode:  binary.BigEndian.Uint32(buf[5:9]),
		RelNode: binary.BigEndian.Uint32(buf[9:13]),
		ForkNum: buf[13],
		NonRel:  NonRelKind(buf[14]),
		SegNo:   binary.BigEndian.Uint32(buf[15:19]),
	}, nil
}

func (t RelishTag) String() string {
	if t.Kind == RelationFork {
		return fmt.Sprintf("rel(%d,%d,%d,%d)", t.SpcNode, t.DbNode, t.RelNode, t.ForkNum)
	}
	return fmt.Sprintf("nonrel(%d,%d)", t.NonRel, t.SegNo)
}

// RelTag builds a relation-fork entity tag — the common case used by tests
// and the examples.
func RelTag(spcNode, dbNode, relNode uint32, forkNum uint8) RelishTag {
	return RelishTag{Kind: RelationFork, SpcNode: spcNode, DbNode: dbNode, RelNode: relNode, ForkNum: forkNum}
}

// NonRelTag builds a non-relational entity tag.
func NonRelTag(kind NonRelKind, segNo uint32) RelishTag {
	return RelishTag{Kind: NonRelObject, NonRel: kind, SegNo: segNo}
}

// BlockNumber addresses a page within a blocky entity.
type BlockNumber uint32
