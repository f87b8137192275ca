// Package supervisor runs the two tenant-wide background loops of §4.8/§5:
// a periodic checkpoint sweep and a periodic GC sweep. The checkpoint
// sweep is throttled so a large scan doesn't monopolize the KV engine's
// IO (DOMAIN STACK: github.com/cockroachdb/tokenbucket, pebble's own
// dependency); the GC sweep is not throttled. Failure
// policy follows §9's redesign of the source's "panic on any checkpoint
// or GC error": transient errors are logged and retried on the next
// interval; only corruption escalates, by panicking the loop's goroutine
// the way the source does unconditionally today.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	cerrors "github.com/cockroachdb/errors"
	"github.com/cockroachdb/tokenbucket"
	"github.com/google/uuid"

	"github.com/bobboyms/pageserver/pkg/config"
	pgerrors "github.com/bobboyms/pageserver/pkg/errors"
	"github.com/bobboyms/pageserver/pkg/gc"
	"github.com/bobboyms/pageserver/pkg/metrics"
	"github.com/bobboyms/pageserver/pkg/timeline"
	"github.com/bobboyms/pageserver/pkg/types"
)

// Repository is everything a Supervisor needs from pkg/repository — kept
// as an interface so tests can substitute a fake registry.
type Repository interface {
	ListTimelineIDs() ([]uuid.UUID, error)
	GetTimeline(id uuid.UUID) (*timeline.Timeline, error)
	GcIteration(ctx context.Context, target *uuid.UUID, horizon types.Lsn, checkpointBeforeGC bool) (gc.Result, error)
}

// Supervisor owns the checkpoint and GC background loops for one
// repository (tenant).
type Supervisor struct {
	repo    Repository
	cfg     config.Config
	metrics *metrics.Metrics

	throttle tokenbucket.TokenBucket

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New builds a Supervisor. m may be nil to disable metrics recording.
func New(repo Repository, cfg config.Config, m *metrics.Metrics) *Supervisor {
	s := &Supervisor{
		repo:     repo,
		cfg:      cfg,
		metrics:  m,
		shutdown: make(chan struct{}),
	}
	s.throttle.Init(tokenbucket.Rate(cfg.SupervisorRateBytesPerSec), tokenbucket.Tokens(cfg.SupervisorBurstBytes))
	return s
}

// Shutdown signals both loops to stop at their next iteration boundary —
// the cooperative process-wide flag of §5 (in-flight work always
// completes; only the next sweep is skipped).
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// RunCheckpointLoop runs checkpoint_period-spaced sweeps until ctx is
// cancelled or Shutdown is called.
func (s *Supervisor) RunCheckpointLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CheckpointPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			if err := s.checkpointSweep(ctx); err != nil {
				s.handleLoopError("checkpoint", err)
			}
		}
	}
}

// RunGCLoop runs gc_period-spaced sweeps over every timeline until ctx is
// cancelled or Shutdown is called.
func (s *Supervisor) RunGCLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.GcPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			start := time.Now()
			result, err := s.repo.GcIteration(ctx, nil, types.Lsn(s.cfg.GcHorizon), s.cfg.CheckpointBeforeGC)
			if err != nil {
				s.handleLoopError("gc", err)
				continue
			}
			if s.metrics != nil {
				s.metrics.GCRuns.Inc()
				s.metrics.GCDuration.Observe(time.Since(start).Seconds())
				s.metrics.GCDataVersionsDeleted.Add(float64(result.DataVersionsDeleted))
				s.metrics.GCMetadataRowsDeleted.Add(float64(result.MetadataRowsDeleted))
			}
		}
	}
}

func (s *Supervisor) checkpointSweep(ctx context.Context) error {
	start := time.Now()

	ids, err := s.repo.ListTimelineIDs()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.throttle.Wait(ctx, tokenbucket.Tokens(s.cfg.CheckpointDistance)); err != nil {
			return err
		}

		tl, err := s.repo.GetTimeline(id)
		if err != nil {
			return err
		}
		if tl.State() == timeline.Broken {
			continue
		}

		result, err := tl.Checkpoint(ctx, s.cfg.CheckpointDistance)
		if err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.CheckpointBlocksDone.Add(float64(result.BlocksMaterialized))
		}
	}

	if s.metrics != nil {
		s.metrics.CheckpointRuns.Inc()
		s.metrics.CheckpointDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

// handleLoopError implements §9's supervisor failure policy: log and let
// the loop retry on its next tick, except for corruption, which escalates
// by panicking this goroutine — the one case the source's
// panic-on-any-error behavior is worth keeping.
func (s *Supervisor) handleLoopError(loopName string, err error) {
	var corruption *pgerrors.CorruptionError
	if cerrors.As(err, &corruption) {
		panic(fmt.Sprintf("supervisor: %s loop hit corruption, escalating: %v", loopName, err))
	}
	log.Printf("supervisor: %s loop error, will retry next interval: %v", loopName, err)
}
