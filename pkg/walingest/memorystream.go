package walingest

import (
	"context"
	"sync"

	"github.com/bobboyms/pageserver/pkg/types"
)

// MemoryStream is an in-process ReplicationStream: a producer (a test or
// a demo main) Pushes messages, the ingest Task Recvs them. It stands in
// for the real replication connection §6 treats as an external
// collaborator.
type MemoryStream struct {
	mu         sync.Mutex
	cond       *sync.Cond
	queue      []Message
	closed     bool
	startLsn   types.Lsn
	lastFB     Feedback
	haveLastFB bool
}

// NewMemoryStream returns an empty stream.
func NewMemoryStream() *MemoryStream {
	s := &MemoryStream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *MemoryStream) Open(_ context.Context, startLsn types.Lsn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLsn = startLsn
	return nil
}

// Push enqueues a message for the consumer. Safe to call concurrently
// with Recv.
func (s *MemoryStream) Push(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, msg)
	s.cond.Signal()
}

// Recv blocks until a message is available, the stream is closed, or ctx
// is done.
func (s *MemoryStream) Recv(ctx context.Context) (Message, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}
	if ctx.Err() != nil {
		return Message{}, ctx.Err()
	}
	if len(s.queue) == 0 {
		return Message{}, context.Canceled
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, nil
}

func (s *MemoryStream) SendStatus(_ context.Context, fb Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFB = fb
	s.haveLastFB = true
	return nil
}

// LastStatus returns the most recent feedback sent, for tests/demos to
// inspect.
func (s *MemoryStream) LastStatus() (Feedback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFB, s.haveLastFB
}

func (s *MemoryStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}
