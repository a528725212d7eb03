package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
)

func openViewer(t *testing.T, h *Hub, id string) *Viewer {
	t.Helper()
	v := NewViewer(context.Background(), id, newFakeConn(), h)
	if err := v.lifecycle.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return v
}

func TestRegistryRegister(t *testing.T) {
	h := newTestHub(t, 2, false)
	r := NewRegistry()

	pending := NewViewer(context.Background(), "pending", newFakeConn(), h)
	if err := r.Register(pending); !errors.Is(err, domain.ErrNotOpen) {
		t.Fatalf("Register(connecting) error = %v, want ErrNotOpen", err)
	}

	v := openViewer(t, h, "v1")
	if err := r.Register(v); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(v); err != nil {
		t.Fatalf("second Register() error = %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	if !r.Unregister(v) {
		t.Error("Unregister() = false for a registered viewer")
	}
	if r.Unregister(v) {
		t.Error("second Unregister() = true")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistrySnapshotIsStable(t *testing.T) {
	h := newTestHub(t, 2, false)
	r := NewRegistry()
	a, b := openViewer(t, h, "a"), openViewer(t, h, "b")
	r.Register(a)
	r.Register(b)

	snap := r.Snapshot()
	r.Unregister(a)
	r.Register(openViewer(t, h, "c"))

	if len(snap) != 2 {
		t.Fatalf("old snapshot changed length to %d", len(snap))
	}
	ids := map[string]bool{}
	for _, v := range snap {
		ids[v.ID] = true
	}
	if !ids["a"] || !ids["b"] {
		t.Errorf("old snapshot = %v, want a and b", ids)
	}
}

func TestRegistryConcurrentMutation(t *testing.T) {
	h := newTestHub(t, 2, false)
	r := NewRegistry()

	const n = 64
	viewers := make([]*Viewer, n)
	for i := range viewers {
		viewers[i] = openViewer(t, h, fmt.Sprintf("v%d", i))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				for _, v := range r.Snapshot() {
					if v == nil {
						t.Error("snapshot contains a nil viewer")
						return
					}
				}
			}
		}
	}()

	for _, v := range viewers {
		wg.Add(1)
		go func(v *Viewer) {
			defer wg.Done()
			r.Register(v)
			r.Unregister(v)
			r.Register(v)
		}(v)
	}
	wg.Wait()
	close(stop)

	if r.Len() != n {
		t.Errorf("Len() = %d, want %d", r.Len(), n)
	}
}
