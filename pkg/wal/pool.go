package wal

import "sync"

// pool.go: object pooling to avoid excessive GC pressure on the hot path.

var (
	// Pool of WALEntry structs.
	entryPool = sync.Pool{
		New: func() interface{} {
			return &WALEntry{
				Payload: make([]byte, 0, 4096), // pre-allocate 4KB
			}
		},
	}

	// Pool of byte-slice buffers (serialization/header scratch space).
	bufferPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 0, 8192) // 8KB buffer
			return &buf
		},
	}
)

// AcquireEntry gets an entry from the pool.
func AcquireEntry() *WALEntry {
	return entryPool.Get().(*WALEntry)
}

// ReleaseEntry returns the entry to the pool.
func ReleaseEntry(e *WALEntry) {
	e.Header = WALHeader{}    // zero the header
	e.Payload = e.Payload[:0] // reset length, keep capacity
	entryPool.Put(e)
}

// AcquireBuffer gets a byte buffer from the pool.
func AcquireBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// ReleaseBuffer returns the buffer to the pool.
func ReleaseBuffer(buf *[]byte) {
	*buf = (*buf)[:0]
	bufferPool.Put(buf)
}
