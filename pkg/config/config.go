// Package config holds the plain, documented-default configuration knobs
// of §6: the supervisor periods/distances and the two fixed constants
// (wait_lsn's timeout, the page size) collected in one struct, the way
// the teacher's pkg/wal.Options/DefaultOptions pairs a config struct with
// a single sane-default constructor.
package config

import "time"

// Config holds every tunable named in §6 plus the fixed constants a
// deployment may still want to see in one place.
type Config struct {
	// CheckpointPeriod is the checkpoint supervisor's sleep interval
	// between sweeps over every timeline.
	CheckpointPeriod time.Duration

	// CheckpointDistance is the minimum accumulated delta bytes before a
	// block's chain is materialized into a fresh image.
	CheckpointDistance int64

	// GcPeriod is the GC supervisor's sleep interval between sweeps.
	GcPeriod time.Duration

	// GcHorizon is the LSN distance behind last_record_lsn past which
	// versions become eligible for collection.
	GcHorizon uint64

	// CheckpointBeforeGC forces a checkpoint pass ahead of each GC sweep,
	// so the retained image for a surviving chain is as fresh as possible.
	CheckpointBeforeGC bool

	// WaitLsnTimeout is wait_lsn's fixed deadline (§4.2).
	WaitLsnTimeout time.Duration

	// PageSize is the fixed page size every Image/redo result must be
	// (GLOSSARY).
	PageSize int

	// SupervisorBurstBytes/SupervisorRateBytesPerSec throttle the
	// checkpoint background scan (SPEC_FULL.md's DOMAIN STACK:
	// cockroachdb/tokenbucket), so a large sweep doesn't monopolize the
	// KV engine's IO. The GC loop is not throttled.
	SupervisorRateBytesPerSec float64
	SupervisorBurstBytes      float64
}

// DefaultConfig returns conservative defaults suitable for local
// development and the examples.
func DefaultConfig() Config {
	return Config{
		CheckpointPeriod:          30 * time.Second,
		CheckpointDistance:        64 * 1024 * 1024,
		GcPeriod:                  2 * time.Minute,
		GcHorizon:                 64 * 1024 * 1024,
		CheckpointBeforeGC:        true,
		WaitLsnTimeout:            60 * time.Second,
		PageSize:                  8192,
		SupervisorRateBytesPerSec: 32 * 1024 * 1024,
		SupervisorBurstBytes:      8 * 1024 * 1024,
	}
}
