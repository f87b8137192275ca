// metadatavalue.go encodes the MetadataValue{size: Option<u32>} of §3 into
// the bytes stored under a Metadata(entity, lsn) key: four bytes of size,
// or an empty value for a tombstone (entity dropped at this LSN).
package timeline

import "encoding/binary"

// encodeMetadataValue serializes Some(size). A tombstone is the empty
// byte slice, so Put(key, nil) and Put(key, []byte{}) both read back as
// None.
func encodeMetadataValue(size uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, size)
	return buf
}

// decodeMetadataValue returns (size, true) for a populated row, or
// (0, false) for a tombstone.
func decodeMetadataValue(raw []byte) (size uint32, ok bool) {
	if len(raw) == 0 {
		return 0, false
	}
	return binary.BigEndian.Uint32(raw), true
}
