// walcodec.go bridges pkg/wal's on-disk entry framing (the teacher's WAL
// container, adapted in SPEC_FULL.md's AMBIENT STACK to carry the four
// writer primitives of §4.3 instead of document insert/update/delete) to
// this package's Record. Encode turns a Record into a *wal.WALEntry ready
// for wal.WALWriter; Decode is the inverse, used by FileWALDecoder.
package walingest

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/bobboyms/pageserver/pkg/types"
	"github.com/bobboyms/pageserver/pkg/wal"
)

// entryTypeFor/kindFor map Kind <-> wal.EntryType. The two vocabularies
// were declared in the same order on purpose, but the mapping is kept
// explicit rather than relied upon positionally.
func entryTypeFor(k Kind) (uint8, error) {
	switch k {
	case PutWalRecord:
		return wal.EntryPutWalRecord, nil
	case PutPageImage:
		return wal.EntryPutPageImage, nil
	case PutTruncation:
		return wal.EntryPutTruncation, nil
	case DropRelish:
		return wal.EntryDropRelish, nil
	default:
		return 0, errors.Newf("walingest: unknown record kind %d", k)
	}
}

func kindFor(entryType uint8) (Kind, error) {
	switch entryType {
	case wal.EntryPutWalRecord:
		return PutWalRecord, nil
	case wal.EntryPutPageImage:
		return PutPageImage, nil
	case wal.EntryPutTruncation:
		return PutTruncation, nil
	case wal.EntryDropRelish:
		return DropRelish, nil
	default:
		return 0, errors.Newf("walingest: unknown WAL entry type %d", entryType)
	}
}

// EncodeWALEntry packs rec's entity/block plus its kind-specific fields
// into one *wal.WALEntry: RelishTag bytes, then a big-endian block
// number, then a kind-specific tail (will_init+payload, image, new size,
// or nothing for a drop).
func EncodeWALEntry(rec Record) (*wal.WALEntry, error) {
	entryType, err := entryTypeFor(rec.Kind)
	if err != nil {
		return nil, err
	}

	entityBytes := rec.Entity.Bytes()
	body := make([]byte, 0, len(entityBytes)+4+len(rec.Payload)+len(rec.Image)+5)
	body = append(body, entityBytes...)

	var blockBuf [4]byte
	binary.BigEndian.PutUint32(blockBuf[:], uint32(rec.Block))
	body = append(body, blockBuf[:]...)

	switch rec.Kind {
	case PutWalRecord:
		willInit := byte(0)
		if rec.WillInit {
			willInit = 1
		}
		body = append(body, willInit)
		body = append(body, rec.Payload...)
	case PutPageImage:
		if len(rec.Image) != types.PageSize {
			return nil, errors.Newf("walingest: image must be %d bytes, got %d", types.PageSize, len(rec.Image))
		}
		body = append(body, rec.Image...)
	case PutTruncation:
		var sizeBuf [4]byte
		binary.BigEndian.PutUint32(sizeBuf[:], rec.NewSize)
		body = append(body, sizeBuf[:]...)
	case DropRelish:
		// No tail.
	}

	entry := &wal.WALEntry{
		Header: wal.WALHeader{
			Magic:      wal.WALMagic,
			Version:    wal.WALVersion,
			EntryType:  entryType,
			LSN:        uint64(rec.Lsn),
			PayloadLen: uint32(len(body)),
			CRC32:      wal.CalculateCRC32(body),
		},
		Payload: body,
	}
	return entry, nil
}

// DecodeWALEntry is the inverse of EncodeWALEntry.
func DecodeWALEntry(entry *wal.WALEntry) (Record, error) {
	kind, err := kindFor(entry.Header.EntryType)
	if err != nil {
		return Record{}, err
	}

	body := entry.Payload
	if len(body) < types.RelishTagSize+4 {
		return Record{}, errors.Newf("walingest: WAL entry body too short (%d bytes)", len(body))
	}
	entity, err := types.DecodeRelishTag(body[:types.RelishTagSize])
	if err != nil {
		return Record{}, errors.Wrap(err, "walingest: decoding entity from WAL entry")
	}
	off := types.RelishTagSize
	block := types.BlockNumber(binary.BigEndian.Uint32(body[off : off+4]))
	tail := body[off+4:]

	rec := Record{
		Lsn:    types.Lsn(entry.Header.LSN),
		Kind:   kind,
		Entity: entity,
		Block:  block,
	}

	switch kind {
	case PutWalRecord:
		if len(tail) < 1 {
			return Record{}, errors.New("walingest: put_wal_record entry missing will_init byte")
		}
		rec.WillInit = tail[0] != 0
		rec.Payload = append([]byte{}, tail[1:]...)
	case PutPageImage:
		if len(tail) != types.PageSize {
			return Record{}, errors.Newf("walingest: put_page_image entry has %d-byte image, want %d", len(tail), types.PageSize)
		}
		rec.Image = append([]byte{}, tail...)
	case PutTruncation:
		if len(tail) != 4 {
			return Record{}, errors.Newf("walingest: put_truncation entry has %d-byte tail, want 4", len(tail))
		}
		rec.NewSize = binary.BigEndian.Uint32(tail)
	case DropRelish:
		// No tail expected.
	}
	return rec, nil
}
