package walingest

import (
	"context"
	"testing"
	"time"

	"github.com/bobboyms/pageserver/pkg/types"
)

func TestTask_AppliesRecordsInOrder(t *testing.T) {
	tl := newTestTimelineAt(t, types.Lsn(8))
	entity := types.RelTag(1, 1, 100, 0)

	stream := NewMemoryStream()
	records := []Record{
		{Lsn: 16, Kind: PutPageImage, Entity: entity, Block: 0, Image: make([]byte, types.PageSize)},
		{Lsn: 24, Kind: PutWalRecord, Entity: entity, Block: 0, Payload: []byte("delta")},
	}
	data, err := EncodeRecords(records)
	if err != nil {
		t.Fatalf("EncodeRecords: %v", err)
	}
	stream.Push(Message{Kind: XLogData, Data: data})

	task := &Task{Timeline: tl, Stream: stream, Decoder: PassthroughDecoder{}, FeedbackInt: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		if tl.GetLastRecordLsn() == types.Lsn(24) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for records to apply")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	img, err := tl.GetPageAtLsn(context.Background(), entity, 0, 24)
	if err != nil {
		t.Fatalf("GetPageAtLsn: %v", err)
	}
	if len(img) != types.PageSize {
		t.Errorf("expected reconstructed page of size %d, got %d", types.PageSize, len(img))
	}
}

func TestTask_RequiresNonZeroStartLsn(t *testing.T) {
	tl := newTestTimeline(t) // lastRecordLsn defaults to InvalidLsn

	task := &Task{Timeline: tl, Stream: NewMemoryStream(), Decoder: PassthroughDecoder{}}
	if err := task.Run(context.Background()); err == nil {
		t.Error("expected error starting ingest on a timeline with no base")
	}
}

func TestTask_RepliesToKeepAlive(t *testing.T) {
	tl := newTestTimelineAt(t, types.Lsn(8))
	stream := NewMemoryStream()
	stream.Push(Message{Kind: PrimaryKeepAlive, ReplyRequested: true})
	task := &Task{Timeline: tl, Stream: stream, Decoder: PassthroughDecoder{}, FeedbackInt: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := stream.LastStatus(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for keepalive reply")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
