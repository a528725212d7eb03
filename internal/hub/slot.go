package hub

import (
	"sync"
	"sync/atomic"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
)

// ProducerSlot holds at most one producer. Only the occupant is OPEN as a
// producer, and only its frames reach the broadcaster.
type ProducerSlot struct {
	broadcaster *Broadcaster

	mu       sync.Mutex
	occupant *Producer

	discarded atomic.Uint64
}

// NewProducerSlot creates an empty slot feeding broadcaster.
func NewProducerSlot(broadcaster *Broadcaster) *ProducerSlot {
	return &ProducerSlot{broadcaster: broadcaster}
}

// TryAcquire installs p and opens it if the slot is empty. Otherwise it
// returns domain.ErrSlotConflict and the occupant is left untouched.
// Viewers learn about the change while the slot lock is held, so notices
// follow the order of acquisitions and releases.
func (s *ProducerSlot) TryAcquire(p *Producer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.occupant != nil {
		return domain.ErrSlotConflict
	}
	if err := p.lifecycle.Open(); err != nil {
		return err
	}
	s.occupant = p
	s.broadcaster.ProducerChanged(true)
	return nil
}

// Release empties the slot if p is the occupant and reports whether it did.
func (s *ProducerSlot) Release(p *Producer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.occupant == nil || s.occupant != p {
		return false
	}
	s.occupant = nil
	s.broadcaster.ProducerChanged(false)
	return true
}

// Occupant returns the current producer, or nil.
func (s *ProducerSlot) Occupant() *Producer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupant
}

// Forward hands data to the broadcaster when a producer holds the slot and
// silently drops it otherwise.
func (s *ProducerSlot) Forward(data []byte) bool {
	return s.forward(nil, data)
}

// forward is Forward restricted to frames read by from. A producer whose
// slot was already released cannot inject frames into a successor's stream.
func (s *ProducerSlot) forward(from *Producer, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.occupant == nil || (from != nil && s.occupant != from) {
		s.discarded.Add(1)
		return false
	}
	s.broadcaster.Broadcast(data)
	return true
}

// Discarded returns how many frames arrived while no producer held the slot.
func (s *ProducerSlot) Discarded() uint64 {
	return s.discarded.Load()
}
