package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bobboyms/pageserver/pkg/config"
	pgerrors "github.com/bobboyms/pageserver/pkg/errors"
	"github.com/bobboyms/pageserver/pkg/gc"
	"github.com/bobboyms/pageserver/pkg/metrics"
	"github.com/bobboyms/pageserver/pkg/timeline"
	"github.com/bobboyms/pageserver/pkg/types"
)

type fakeRepo struct {
	ids         []uuid.UUID
	timelines   map[uuid.UUID]*timeline.Timeline
	gcCalls     int
	gcErr       error
	listErr     error
	getErr      error
	checkpointN int64
}

func (r *fakeRepo) ListTimelineIDs() ([]uuid.UUID, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.ids, nil
}

func (r *fakeRepo) GetTimeline(id uuid.UUID) (*timeline.Timeline, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.timelines[id], nil
}

func (r *fakeRepo) GcIteration(ctx context.Context, target *uuid.UUID, horizon types.Lsn, checkpointBeforeGC bool) (gc.Result, error) {
	r.gcCalls++
	if r.gcErr != nil {
		return gc.Result{}, r.gcErr
	}
	return gc.Result{TimelinesScanned: len(r.ids)}, nil
}

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.CheckpointPeriod = 10 * time.Millisecond
	cfg.GcPeriod = 10 * time.Millisecond
	cfg.CheckpointDistance = 1
	return cfg
}

func TestSupervisor_RunGCLoop_InvokesGcIterationPeriodically(t *testing.T) {
	repo := &fakeRepo{}
	s := New(repo, testConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	s.RunGCLoop(ctx)

	if repo.gcCalls == 0 {
		t.Error("expected GcIteration to be invoked at least once")
	}
}

func TestSupervisor_Shutdown_StopsLoopPromptly(t *testing.T) {
	repo := &fakeRepo{}
	s := New(repo, testConfig(), nil)

	done := make(chan struct{})
	go func() {
		s.RunGCLoop(context.Background())
		close(done)
	}()

	time.Sleep(15 * time.Millisecond)
	s.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected RunGCLoop to return shortly after Shutdown")
	}
}

func TestSupervisor_CheckpointSweep_SkipsBrokenTimelines(t *testing.T) {
	id := uuid.New()
	tl := timeline.New(timeline.Config{ID: id})
	tl.SetState(timeline.Broken)

	repo := &fakeRepo{ids: []uuid.UUID{id}, timelines: map[uuid.UUID]*timeline.Timeline{id: tl}}
	s := New(repo, testConfig(), nil)

	if err := s.checkpointSweep(context.Background()); err != nil {
		t.Fatalf("checkpointSweep: %v", err)
	}
}

func TestSupervisor_HandleLoopError_LogsTransientError(t *testing.T) {
	repo := &fakeRepo{}
	s := New(repo, testConfig(), nil)
	// A non-corruption error must not panic.
	s.handleLoopError("checkpoint", errors.New("transient io hiccup"))
}

func TestSupervisor_HandleLoopError_PanicsOnCorruption(t *testing.T) {
	repo := &fakeRepo{}
	s := New(repo, testConfig(), nil)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected handleLoopError to panic on a corruption error")
		}
	}()
	s.handleLoopError("gc", &pgerrors.CorruptionError{Reason: "bad crc"})
}

func TestSupervisor_MetricsAreRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := &fakeRepo{ids: []uuid.UUID{uuid.New()}}
	s := New(repo, testConfig(), m)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	s.RunGCLoop(ctx)

	if repo.gcCalls == 0 {
		t.Error("expected at least one GC iteration to record metrics against")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "pageserver_gc_runs_total" {
			found = true
			if v := f.GetMetric()[0].GetCounter().GetValue(); v < 1 {
				t.Errorf("expected pageserver_gc_runs_total >= 1, got %v", v)
			}
		}
	}
	if !found {
		t.Error("expected pageserver_gc_runs_total to be registered and gathered")
	}
}
