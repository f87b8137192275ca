package wal

import "time"

// SyncPolicy selects the durability/throughput tradeoff for WriteEntry.
type SyncPolicy int

const (
	// SyncEveryWrite fsyncs after every write. Safest, slowest.
	SyncEveryWrite SyncPolicy = iota

	// SyncInterval fsyncs periodically in the background. Balanced.
	SyncInterval

	// SyncBatch fsyncs once accumulated bytes cross SyncBatchBytes.
	// Highest throughput.
	SyncBatch
)

// Options configures a WALWriter.
type Options struct {
	// DirPath is the directory the log file lives in.
	DirPath string

	// BufferSize is the in-memory bufio buffer size before the OS sees
	// the bytes.
	BufferSize int

	SyncPolicy SyncPolicy

	// SyncIntervalDuration is the ticker period for SyncInterval.
	SyncIntervalDuration time.Duration

	// SyncBatchBytes triggers a sync once crossed, for SyncBatch only.
	SyncBatchBytes int64
}

// DefaultOptions returns a safe, balanced default.
func DefaultOptions() Options {
	return Options{
		DirPath:              "./wal_data",
		BufferSize:           64 * 1024,
		SyncPolicy:           SyncInterval,
		SyncIntervalDuration: 200 * time.Millisecond,
		SyncBatchBytes:       1 * 1024 * 1024,
	}
}
