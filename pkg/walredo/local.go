package walredo

import (
	"context"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/bobboyms/pageserver/pkg/types"
)

// LocalManager applies redo records in-process instead of delegating to a
// child process. It is the manager wired by default (see examples/) and by
// every test in this module, since spawning a real redo worker is out of
// scope (§1). Each record's payload is a small self-describing patch:
//
//	offset uint16 | length uint16 | bytes[length]
//
// will_init records patch a freshly zeroed page; non-init records patch
// whatever base/prior-record result they're handed. This gives the
// redo(base, records) function used throughout §8's test scenarios a
// concrete, deterministic meaning.
type LocalManager struct{}

// NewLocalManager constructs the in-process redo manager.
func NewLocalManager() *LocalManager {
	return &LocalManager{}
}

const patchHeaderLen = 4

// RequestRedo implements Manager.
func (m *LocalManager) RequestRedo(_ context.Context, entity types.RelishTag, block types.BlockNumber, requestLsn types.Lsn, base []byte, records []Record) ([]byte, error) {
	if base == nil && len(records) == 0 {
		return nil, ErrEmptyChain
	}

	var page []byte
	if base != nil {
		page = make([]byte, len(base))
		copy(page, base)
	}

	for _, rec := range records {
		if rec.WillInit {
			page = make([]byte, types.PageSize)
		}
		if page == nil {
			return nil, errors.Newf("walredo: record at lsn %s has no base to apply to for %s block %d", rec.Lsn, entity, block)
		}
		if err := applyPatch(page, rec.Payload); err != nil {
			return nil, errors.Wrapf(err, "walredo: applying record at lsn %s", rec.Lsn)
		}
	}

	if page == nil {
		return nil, ErrEmptyChain
	}
	return page, nil
}

func applyPatch(page, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if len(payload) < patchHeaderLen {
		return errors.Newf("walredo: truncated patch payload (%d bytes)", len(payload))
	}
	offset := binary.BigEndian.Uint16(payload[0:2])
	length := binary.BigEndian.Uint16(payload[2:4])
	data := payload[patchHeaderLen:]
	if int(length) != len(data) {
		return errors.Newf("walredo: patch length mismatch: header says %d, got %d", length, len(data))
	}
	if int(offset)+len(data) > len(page) {
		return errors.Newf("walredo: patch at offset %d length %d overflows page of size %d", offset, len(data), len(page))
	}
	copy(page[offset:], data)
	return nil
}

// EncodePatch builds a Record payload applying data at offset — the
// inverse operation tests use to build WAL records.
func EncodePatch(offset uint16, data []byte) []byte {
	buf := make([]byte, patchHeaderLen+len(data))
	binary.BigEndian.PutUint16(buf[0:2], offset)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(data)))
	copy(buf[patchHeaderLen:], data)
	return buf
}
