// Package wal is the on-disk WAL record container used by the ingest path
// of §4.8: a fixed 24-byte header (magic, version, entry type, LSN,
// payload length, CRC32C) followed by an opaque payload, exactly the
// teacher's WALHeader/WALEntry framing — only the EntryType vocabulary
// changed, from document insert/update/delete to the four writer
// primitives of §4.3.
package wal

import (
	"encoding/binary"
	"io"
)

// Constants for the header layout and entry vocabulary.
const (
	HeaderSize = 24 // fixed header size in bytes
	WALVersion = 1  // current wire format version

	// WALMagic is the fast-path validity check (0xDEADBEEF).
	WALMagic = 0xDEADBEEF
)

// EntryType enumerates the writer primitives of §4.3 that a decoded WAL
// record may invoke.
const (
	EntryPutWalRecord  uint8 = iota + 1 // put_wal_record: Data(e,b,lsn)=Delta(rec)
	EntryPutPageImage                   // put_page_image: Data(e,b,lsn)=Image(img)
	EntryPutTruncation                  // put_truncation: Metadata(e,lsn)=Some(size)
	EntryDropRelish                     // drop_relish: Metadata(e,lsn)=None
)

// WALHeader is the fixed 24-byte header prefixing every entry.
type WALHeader struct {
	Magic      uint32 // 4 bytes
	Version    uint8  // 1 byte
	EntryType  uint8  // 1 byte
	Reserved   uint16 // 2 bytes (alignment padding)
	LSN        uint64 // 8 bytes
	PayloadLen uint32 // 4 bytes
	CRC32      uint32 // 4 bytes
}

// WALEntry is one complete record in the log.
type WALEntry struct {
	Header  WALHeader
	Payload []byte
}

// Encode serializes the header into buf.
func (h *WALHeader) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.EntryType
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.LSN)
	binary.LittleEndian.PutUint32(buf[16:20], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[20:24], h.CRC32)
}

// Decode deserializes buf into the header.
func (h *WALHeader) Decode(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.EntryType = buf[5]
	h.Reserved = binary.LittleEndian.Uint16(buf[6:8])
	h.LSN = binary.LittleEndian.Uint64(buf[8:16])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[16:20])
	h.CRC32 = binary.LittleEndian.Uint32(buf[20:24])
}

// WriteTo writes the entry (header + payload) to w.
func (e *WALEntry) WriteTo(w io.Writer) (int64, error) {
	var headerBuf [HeaderSize]byte
	e.Header.Encode(headerBuf[:])

	n, err := w.Write(headerBuf[:])
	if err != nil {
		return int64(n), err
	}

	m, err := w.Write(e.Payload)
	return int64(n + m), err
}
