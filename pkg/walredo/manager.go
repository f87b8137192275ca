// Package walredo is the client side of the WAL-redo collaborator of §6:
// "request_redo(entity, block, request_lsn, base_image?, records) ->
// page_bytes". The real redo worker (a child process applying WAL records
// the way the source database itself would) is explicitly out of scope
// per §1 — a black box this package only talks to through an interface.
package walredo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/bobboyms/pageserver/pkg/types"
)

// Record is a single delta in a redo chain: GLOSSARY's Delta, carrying the
// LSN it was written at, the will_init flag (§3: "this record alone
// re-creates the page without any prior base"), and an opaque payload the
// redo manager knows how to interpret.
type Record struct {
	Lsn      types.Lsn
	WillInit bool
	Payload  []byte
}

// Manager applies a base image plus an ordered chain of records and
// returns the materialized page. Implementations may shell out to a
// separate process (the production case) or, as here, apply records
// in-process for tests and for the default local deployment.
type Manager interface {
	RequestRedo(ctx context.Context, entity types.RelishTag, block types.BlockNumber, requestLsn types.Lsn, base []byte, records []Record) ([]byte, error)
}

// ErrEmptyChain is returned when RequestRedo is asked to reconstruct a
// page from neither a base image nor any records — the corruption
// condition of §7 ("base image missing before leaving an entity prefix")
// surfaces through here when the caller forgot to enforce invariant 5
// before calling redo.
var ErrEmptyChain = errors.New("walredo: no base image and no records to redo")
