package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
)

// Broadcaster fans frames and notices out to every registered viewer. Its
// mutex orders broadcasts against each other and against viewer admission;
// it is held only while enqueueing, which never blocks.
type Broadcaster struct {
	registry *Registry
	notices  bool

	mu   sync.Mutex
	seq  uint64
	live bool

	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

// NewBroadcaster creates a broadcaster over registry. With notices set,
// viewers are told about producer changes through text notices.
func NewBroadcaster(registry *Registry, notices bool) *Broadcaster {
	return &Broadcaster{registry: registry, notices: notices}
}

// Broadcast stamps data with the next sequence number and enqueues it for
// every viewer in the current snapshot.
func (b *Broadcaster) Broadcast(data []byte) domain.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	frame := domain.Frame{Seq: b.seq, Data: data, ReceivedAt: time.Now()}
	b.fanOut(domain.FrameEnvelope(frame))
	b.forwarded.Add(1)
	return frame
}

// Notify enqueues a text notice for every registered viewer, ordered with
// respect to frames.
func (b *Broadcaster) Notify(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fanOut(domain.NoticeEnvelope(text))
}

// ProducerChanged records whether a producer is streaming and, with notices
// enabled, tells every registered viewer.
func (b *Broadcaster) ProducerChanged(connected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.live == connected {
		return
	}
	b.live = connected
	if b.notices {
		b.fanOut(domain.NoticeEnvelope(producerNotice(connected)))
	}
}

// Join registers v so that it sees exactly the broadcasts that start after
// this call. With notices enabled the current producer state is queued
// first.
func (b *Broadcaster) Join(v *Viewer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.registry.Register(v); err != nil {
		return err
	}
	if b.notices {
		v.Enqueue(domain.NoticeEnvelope(producerNotice(b.live)))
	}
	return nil
}

// LastSeq returns the sequence number of the most recent frame.
func (b *Broadcaster) LastSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Stats returns the number of frames broadcast and envelopes dropped by
// full viewer queues.
func (b *Broadcaster) Stats() (forwarded, dropped uint64) {
	return b.forwarded.Load(), b.dropped.Load()
}

func (b *Broadcaster) fanOut(env domain.Envelope) {
	for _, v := range b.registry.Snapshot() {
		if v.Enqueue(env) {
			b.dropped.Add(1)
		}
	}
}

func producerNotice(connected bool) string {
	if connected {
		return domain.NoticeProducerConnected
	}
	return domain.NoticeProducerDisconnected
}
