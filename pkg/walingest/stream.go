package walingest

import (
	"context"

	"github.com/bobboyms/pageserver/pkg/types"
)

// MessageKind distinguishes the two message shapes a replication stream
// produces, per §4.8 step 4/5.
type MessageKind uint8

const (
	// XLogData carries a chunk of WAL bytes for the decoder.
	XLogData MessageKind = iota
	// PrimaryKeepAlive asks (or not) for an immediate status reply.
	PrimaryKeepAlive
)

// Message is one value received off a ReplicationStream.
type Message struct {
	Kind           MessageKind
	Data           []byte // valid when Kind == XLogData
	ReplyRequested bool   // valid when Kind == PrimaryKeepAlive
}

// ReplicationStream is the upstream WAL source (§6's "external
// interfaces": a stream the ingest task opens at a start LSN and receives
// from until shutdown). The production implementation would speak the
// source database's replication protocol; out of scope here.
type ReplicationStream interface {
	// Open begins streaming from startLsn.
	Open(ctx context.Context, startLsn types.Lsn) error
	// Recv blocks for the next message, or returns ctx.Err() once ctx is
	// done.
	Recv(ctx context.Context) (Message, error)
	// SendStatus reports the task's current LSN state back upstream —
	// the reply to a PrimaryKeepAlive{ReplyRequested: true} (§4.8 step 5)
	// and the periodic feedback of step 6.
	SendStatus(ctx context.Context, fb Feedback) error
	Close() error
}
