package hub

import (
	"sync"
	"sync/atomic"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
)

// Registry is the set of OPEN viewers. Writers serialize on a mutex and
// publish a fresh immutable slice on every change, so Snapshot is a single
// atomic load and never waits for Register or Unregister.
type Registry struct {
	mu       sync.Mutex
	viewers  map[string]*Viewer
	snapshot atomic.Pointer[[]*Viewer]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{viewers: make(map[string]*Viewer)}
	empty := []*Viewer{}
	r.snapshot.Store(&empty)
	return r
}

// Register adds v. The viewer must be OPEN; registering it twice is a no-op.
func (r *Registry) Register(v *Viewer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !v.lifecycle.IsOpen() {
		return domain.ErrNotOpen
	}
	if _, ok := r.viewers[v.ID]; ok {
		return nil
	}
	r.viewers[v.ID] = v
	r.publish()
	return nil
}

// Unregister removes v and reports whether it was present.
func (r *Registry) Unregister(v *Viewer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.viewers[v.ID]; !ok || cur != v {
		return false
	}
	delete(r.viewers, v.ID)
	r.publish()
	return true
}

// Snapshot returns the viewers registered at the moment of the call. The
// returned slice must not be modified.
func (r *Registry) Snapshot() []*Viewer {
	return *r.snapshot.Load()
}

// Len returns the number of registered viewers.
func (r *Registry) Len() int {
	return len(r.Snapshot())
}

func (r *Registry) publish() {
	next := make([]*Viewer, 0, len(r.viewers))
	for _, v := range r.viewers {
		next = append(next, v)
	}
	r.snapshot.Store(&next)
}
