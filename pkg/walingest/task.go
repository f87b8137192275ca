package walingest

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/bobboyms/pageserver/pkg/timeline"
	"github.com/bobboyms/pageserver/pkg/types"
)

// FeedbackInterval is how often Task emits the periodic status message of
// §4.8 step 6.
const FeedbackInterval = 1 * time.Second

// RemoteConsistentLsnFunc reports apply_lsn: the LSN a remote uploader has
// acknowledged durable elsewhere. nil means "unknown", reported as 0.
type RemoteConsistentLsnFunc func() types.Lsn

// Task runs one timeline's WAL ingest loop (§4.8): one per timeline,
// reading from a ReplicationStream, decoding with a Decoder, and applying
// the result through the timeline's writer guard.
type Task struct {
	Timeline    *timeline.Timeline
	Stream      ReplicationStream
	Decoder     Decoder
	RemoteLsn   RemoteConsistentLsnFunc
	FeedbackInt time.Duration
}

// Run executes the ingest loop until ctx is cancelled (the cooperative
// process-wide shutdown flag of §4.8/§5) or a fatal error occurs. IO
// errors from the KV engine are fatal per §7; the caller (a supervisor)
// decides whether to retry.
func (t *Task) Run(ctx context.Context) error {
	ctx = timeline.WithIngestTask(ctx)

	startLsn := t.Timeline.GetLastRecordLsn()
	if startLsn == types.InvalidLsn {
		return errors.New("walingest: cannot start ingest on a timeline with no base (last_record_lsn is 0)")
	}
	startLsn = startLsn.Align()

	if err := t.Stream.Open(ctx, startLsn); err != nil {
		return errors.Wrap(err, "walingest: opening replication stream")
	}
	defer t.Stream.Close()

	interval := t.FeedbackInt
	if interval <= 0 {
		interval = FeedbackInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := t.sendFeedback(ctx); err != nil {
				return err
			}
		default:
		}

		msg, err := t.Stream.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "walingest: receiving from stream")
		}

		switch msg.Kind {
		case PrimaryKeepAlive:
			if msg.ReplyRequested {
				if err := t.sendFeedback(ctx); err != nil {
					return err
				}
			}
		case XLogData:
			if err := t.applyChunk(ctx, msg.Data); err != nil {
				return err
			}
		}
	}
}

// applyChunk is §4.8 step 4: decode one XLogData chunk and apply every
// resulting record through the writer guard, in order.
func (t *Task) applyChunk(ctx context.Context, data []byte) error {
	records, err := t.Decoder.Decode(data)
	if err != nil {
		return errors.Wrap(err, "walingest: decoding XLogData")
	}

	for _, rec := range records {
		if !rec.Lsn.IsAligned() {
			return errors.Newf("walingest: record at %s is not 8-byte aligned", rec.Lsn)
		}
		if err := t.applyRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func (t *Task) applyRecord(rec Record) error {
	g := t.Timeline.Writer()
	defer g.Release()

	var err error
	switch rec.Kind {
	case PutWalRecord:
		err = g.PutWalRecord(rec.Entity, rec.Block, rec.Lsn, rec.WillInit, rec.Payload)
	case PutPageImage:
		err = g.PutPageImage(rec.Entity, rec.Block, rec.Lsn, rec.Image)
	case PutTruncation:
		err = g.PutTruncation(rec.Entity, rec.Lsn, rec.NewSize)
	case DropRelish:
		err = g.DropRelish(rec.Entity, rec.Lsn)
	default:
		return errors.Newf("walingest: unknown record kind %d", rec.Kind)
	}
	if err != nil {
		return err
	}
	g.AdvanceLastRecordLsn(rec.Lsn)
	return nil
}

func (t *Task) sendFeedback(ctx context.Context) error {
	var applyLsn types.Lsn
	if t.RemoteLsn != nil {
		applyLsn = t.RemoteLsn()
	}
	fb := Feedback{
		WriteLsn:    t.Timeline.GetLastRecordLsn(),
		FlushLsn:    t.Timeline.DiskConsistentLsn(),
		ApplyLsn:    applyLsn,
		LogicalSize: t.Timeline.GetCurrentLogicalSize(),
		WallTime:    time.Now(),
	}
	return t.Stream.SendStatus(ctx, fb)
}
