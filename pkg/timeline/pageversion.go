// pageversion.go encodes the PageVersion value of §3 — either a full
// Image(bytes[page_size]) or a Delta(WALRecord{lsn, will_init, payload})
// — into the bytes stored under a Data(entity, block, lsn) key.
package timeline

import (
	"github.com/cockroachdb/errors"

	"github.com/bobboyms/pageserver/pkg/types"
	"github.com/bobboyms/pageserver/pkg/walredo"
)

const (
	versionKindImage uint8 = iota
	versionKindDelta
)

// pageVersion is the decoded form of a Data key's value.
type pageVersion struct {
	isImage  bool
	image    []byte // len == types.PageSize, only set when isImage
	willInit bool   // only meaningful when !isImage
	payload  []byte // delta payload, only set when !isImage
}

// encodeImage serializes a full base image.
func encodeImage(img []byte) ([]byte, error) {
	if len(img) != types.PageSize {
		return nil, errors.Newf("timeline: image must be %d bytes, got %d", types.PageSize, len(img))
	}
	buf := make([]byte, 1+types.PageSize)
	buf[0] = versionKindImage
	copy(buf[1:], img)
	return buf, nil
}

// encodeDelta serializes a WAL-record delta.
func encodeDelta(willInit bool, payload []byte) []byte {
	buf := make([]byte, 2+len(payload))
	buf[0] = versionKindDelta
	if willInit {
		buf[1] = 1
	}
	copy(buf[2:], payload)
	return buf
}

// decodePageVersion is the inverse of encodeImage/encodeDelta.
func decodePageVersion(raw []byte) (pageVersion, error) {
	if len(raw) < 1 {
		return pageVersion{}, errors.New("timeline: corrupt page version: empty value")
	}
	switch raw[0] {
	case versionKindImage:
		if len(raw) != 1+types.PageSize {
			return pageVersion{}, errors.Newf("timeline: corrupt image version: expected %d bytes, got %d", 1+types.PageSize, len(raw))
		}
		img := make([]byte, types.PageSize)
		copy(img, raw[1:])
		return pageVersion{isImage: true, image: img}, nil
	case versionKindDelta:
		if len(raw) < 2 {
			return pageVersion{}, errors.New("timeline: corrupt delta version: missing will_init byte")
		}
		payload := make([]byte, len(raw)-2)
		copy(payload, raw[2:])
		return pageVersion{willInit: raw[1] != 0, payload: payload}, nil
	default:
		return pageVersion{}, errors.Newf("timeline: corrupt page version: unknown kind %d", raw[0])
	}
}

func (v pageVersion) asRecord(lsn types.Lsn) walredo.Record {
	return walredo.Record{Lsn: lsn, WillInit: v.willInit, Payload: v.payload}
}
