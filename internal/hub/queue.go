package hub

import (
	"sync"
	"sync/atomic"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
)

// FrameQueue is a bounded FIFO of outbound envelopes for one viewer. Push
// never blocks: when the queue is full the drop policy decides which
// envelope is discarded.
type FrameQueue struct {
	mu     sync.Mutex
	items  []domain.Envelope
	head   int
	size   int
	policy domain.DropPolicy
	closed bool

	ready chan struct{}

	enqueued atomic.Uint64
	dropped  atomic.Uint64
}

// NewFrameQueue creates a queue holding at most capacity envelopes.
func NewFrameQueue(capacity int, policy domain.DropPolicy) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	if policy == "" {
		policy = domain.DropOldest
	}
	return &FrameQueue{
		items:  make([]domain.Envelope, capacity),
		policy: policy,
		ready:  make(chan struct{}, 1),
	}
}

// Push appends env and reports whether an envelope was dropped to make room
// (or, under DropNewest, whether env itself was dropped). Pushing onto a
// closed queue discards env without counting it.
func (q *FrameQueue) Push(env domain.Envelope) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	dropped := false
	if q.size == len(q.items) {
		dropped = true
		q.dropped.Add(1)
		if q.policy == domain.DropNewest {
			q.mu.Unlock()
			return true
		}
		q.items[q.head] = domain.Envelope{}
		q.head = (q.head + 1) % len(q.items)
		q.size--
	}

	q.items[(q.head+q.size)%len(q.items)] = env
	q.size++
	q.enqueued.Add(1)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Pop removes and returns the oldest envelope.
func (q *FrameQueue) Pop() (domain.Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return domain.Envelope{}, false
	}
	env := q.items[q.head]
	q.items[q.head] = domain.Envelope{}
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return env, true
}

// Ready is signalled after a successful Push. A receiver must drain the
// queue with Pop until it is empty before waiting on Ready again.
func (q *FrameQueue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of envelopes waiting to be sent.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity.
func (q *FrameQueue) Cap() int {
	return len(q.items)
}

// Close discards everything still queued and rejects later pushes. It
// returns the number of discarded envelopes.
func (q *FrameQueue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}
	q.closed = true
	discarded := q.size
	for i := range q.items {
		q.items[i] = domain.Envelope{}
	}
	q.head, q.size = 0, 0
	return discarded
}

// Stats returns how many envelopes were accepted and dropped so far.
func (q *FrameQueue) Stats() (enqueued, dropped uint64) {
	return q.enqueued.Load(), q.dropped.Load()
}
