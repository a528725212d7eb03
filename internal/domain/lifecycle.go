package domain

import (
	"sync"
	"time"
)

// ConnState is the lifecycle phase of a single producer or viewer connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Lifecycle tracks one connection through
// CONNECTING -> OPEN -> CLOSING -> CLOSED. Transitions only move forward
// and CLOSED is absorbing. A new connection always gets a new Lifecycle.
type Lifecycle struct {
	state     ConnState
	changedAt time.Time
	mu        sync.RWMutex
}

// NewLifecycle returns a lifecycle in the CONNECTING state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		state:     StateConnecting,
		changedAt: time.Now(),
	}
}

// State returns the current state.
func (l *Lifecycle) State() ConnState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// ChangedAt returns when the current state was entered.
func (l *Lifecycle) ChangedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.changedAt
}

// IsOpen reports whether the connection is admitted and not closing.
func (l *Lifecycle) IsOpen() bool {
	return l.State() == StateOpen
}

// Open moves CONNECTING -> OPEN.
func (l *Lifecycle) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateConnecting:
		l.set(StateOpen)
		return nil
	case StateClosed:
		return ErrAlreadyClosed
	default:
		return ErrInvalidTransition
	}
}

// BeginClose moves CONNECTING or OPEN to CLOSING. It returns true only for
// the call that initiated the close, so teardown runs exactly once no matter
// how many goroutines notice the failure.
func (l *Lifecycle) BeginClose() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateConnecting || l.state == StateOpen {
		l.set(StateClosing)
		return true
	}
	return false
}

// Finish moves the connection to CLOSED. Calling it again is a no-op.
func (l *Lifecycle) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateClosed {
		l.set(StateClosed)
	}
}

func (l *Lifecycle) set(s ConnState) {
	l.state = s
	l.changedAt = time.Now()
}
