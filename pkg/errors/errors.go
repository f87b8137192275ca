// Package errors defines the typed error kinds of §7: InvalidRequest,
// NotFound, Corruption, IO, Timeout, and AlreadyExists. One struct per
// kind, in the teacher's style (pkg/errors in the original storage
// engine) — callers that need a stack trace wrap these with
// github.com/cockroachdb/errors instead of inventing a second hierarchy.
package errors

import "fmt"

// InvalidRequestError covers a malformed caller request: a non-zero block
// on a non-blocky entity, an unaligned LSN, or a request above
// last_record_lsn.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// NotFoundError reports that an entity or page doesn't exist at the
// requested LSN on this timeline or any of its ancestors.
type NotFoundError struct {
	Entity string
	Lsn    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found at lsn %s", e.Entity, e.Lsn)
}

// CorruptionError covers every condition §7 calls corruption: an
// unexpected key type out of the KV range scan, a missing base image
// before leaving an entity prefix, a metadata CRC mismatch, or a
// wrong-sized metadata file.
type CorruptionError struct {
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corruption: %s", e.Reason)
}

// TimeoutError is returned when wait_lsn's deadline elapses before the
// LSN gate advances far enough.
type TimeoutError struct {
	WaitedFor string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s", e.WaitedFor)
}

// AlreadyExistsError is returned by create_empty_timeline/branch_timeline
// when the destination timeline directory is already present.
type AlreadyExistsError struct {
	TimelineID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("timeline %q already exists", e.TimelineID)
}
