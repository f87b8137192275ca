// Package walingest implements the WAL ingest loop of §4.8: the
// per-timeline task that turns a replication stream into calls against a
// Timeline's writer primitives. Real WAL parsing is explicitly out of
// scope (non-goal a), so Decoder and ReplicationStream are external
// collaborators here — a test decoder and an in-memory stream are the
// only implementations this module ships.
package walingest

import (
	"github.com/bobboyms/pageserver/pkg/types"
)

// Kind enumerates the writer primitive a decoded Record invokes.
type Kind uint8

const (
	PutWalRecord Kind = iota
	PutPageImage
	PutTruncation
	DropRelish
)

// Record is one decoded WAL operation: the interpreter's output before it
// is applied against a timeline's writer guard (§4.8 step 4).
type Record struct {
	Lsn    types.Lsn
	Kind   Kind
	Entity types.RelishTag
	Block  types.BlockNumber

	// WillInit/Payload are meaningful for PutWalRecord; Image for
	// PutPageImage; NewSize for PutTruncation. DropRelish uses none.
	WillInit bool
	Payload  []byte
	Image    []byte
	NewSize  uint32
}

// Decoder turns one XLogData chunk into zero or more decoded records, in
// LSN order. The production decoder (never implemented here, per non-goal
// a) would parse the source database's actual WAL format; this package
// only depends on the interface.
type Decoder interface {
	Decode(xlogData []byte) ([]Record, error)
}
