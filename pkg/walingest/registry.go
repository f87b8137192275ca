package walingest

import (
	"sync"

	"github.com/google/uuid"

	pgerrors "github.com/bobboyms/pageserver/pkg/errors"
)

// Registry is the process-wide WAL-receiver bookkeeping of §9's "Global
// registries" note: a single initialization-then-mutable map behind a
// mutex, exposing register/get/drop/list_active. One Task per timeline
// may be registered at a time.
type Registry struct {
	mu     sync.Mutex
	active map[uuid.UUID]*Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[uuid.UUID]*Task)}
}

// Register records t as the active ingest task for timelineID. Returns
// AlreadyExists if a task is already registered for that timeline — §4.8
// runs exactly one ingest task per timeline.
func (r *Registry) Register(timelineID uuid.UUID, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[timelineID]; ok {
		return &pgerrors.AlreadyExistsError{TimelineID: timelineID.String()}
	}
	r.active[timelineID] = t
	return nil
}

// Get returns the registered task for timelineID, if any.
func (r *Registry) Get(timelineID uuid.UUID) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.active[timelineID]
	return t, ok
}

// Drop unregisters timelineID's ingest task — called on shutdown (§4.8's
// "unregisters the receiver entry").
func (r *Registry) Drop(timelineID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, timelineID)
}

// ListActive returns every timeline with a currently registered ingest
// task.
func (r *Registry) ListActive() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}
