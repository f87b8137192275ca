package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWALWriter_IntervalSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interval.log")

	payload := []byte("some data")
	crc := CalculateCRC32(payload)

	opts := Options{
		SyncPolicy:           SyncInterval,
		SyncIntervalDuration: 50 * time.Millisecond,
		BufferSize:           1024,
	}

	w, err := NewWALWriter(path, opts)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	entry := AcquireEntry()
	entry.Header = WALHeader{
		Magic:      WALMagic,
		Version:    WALVersion,
		EntryType:  EntryPutWalRecord,
		PayloadLen: uint32(len(payload)),
		CRC32:      crc,
		LSN:        8,
	}
	entry.Payload = append(entry.Payload, payload...)

	if err := w.WriteEntry(entry); err != nil {
		t.Fatalf("WriteEntry failed: %v", err)
	}
	ReleaseEntry(entry)

	time.Sleep(100 * time.Millisecond)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Error("file size is 0 after background sync, expected content")
	}

	w.Close()
}

func TestWALWriter_BatchSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.log")

	opts := Options{
		SyncPolicy:     SyncBatch,
		SyncBatchBytes: 100,
		BufferSize:     1024,
	}

	w, err := NewWALWriter(path, opts)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	payload := []byte("12345")
	entrySize := int64(HeaderSize + len(payload))

	entry := AcquireEntry()
	entry.Header.PayloadLen = uint32(len(payload))
	entry.Payload = append(entry.Payload, payload...)

	for i := 0; i < 4; i++ {
		if err := w.WriteEntry(entry); err != nil {
			t.Fatalf("WriteEntry failed: %v", err)
		}
	}
	ReleaseEntry(entry)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	expected := 4 * entrySize
	if info.Size() != expected {
		t.Errorf("file size: %d, expected: %d (the 4th write crosses SyncBatchBytes and syncs)", info.Size(), expected)
	}

	w.Close()
}

func TestWALWriter_SyncError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync_error.log")

	w, err := NewWALWriter(path, Options{SyncPolicy: SyncEveryWrite})
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	w.file.Close() // force future syncs to fail

	entry := AcquireEntry()
	entry.Header.Magic = WALMagic
	if err := w.WriteEntry(entry); err == nil {
		t.Error("expected error writing to closed file")
	}
	ReleaseEntry(entry)
}

func TestWALWriter_CloseSyncError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "close_sync.log")

	w, err := NewWALWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	entry := AcquireEntry()
	entry.Payload = []byte("data")
	entry.Header.CRC32 = CalculateCRC32(entry.Payload)
	w.WriteEntry(entry)

	w.file.Close()

	if err := w.Close(); err == nil {
		t.Error("expected error closing writer with already-closed file")
	}
}

func TestNewWALWriter_Error(t *testing.T) {
	tmpDir := t.TempDir()
	if _, err := NewWALWriter(tmpDir, DefaultOptions()); err == nil {
		t.Error("expected error opening a directory as a WAL file")
	}
}
