package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	pkglog "github.com/weiawesome/wes-io-live/relay-service/pkg/log"
)

// Dispatcher decouples connection goroutines from the event bus. Dispatch
// never blocks: events go into a bounded buffer drained by a single worker,
// so publication order matches dispatch order. When the buffer is full the
// event is dropped and counted.
type Dispatcher struct {
	publisher Publisher
	timeout   time.Duration
	queue     chan *Event
	dropped   atomic.Uint64
	published atomic.Uint64
	failed    atomic.Uint64

	// mu orders Dispatch against stop: once stopped is set no event can
	// enter the queue, so the final drain sees every accepted event.
	mu      sync.RWMutex
	stopped bool
	closed  chan struct{}
	done    chan struct{}
}

// NewDispatcher creates a dispatcher in front of publisher.
func NewDispatcher(publisher Publisher, bufferSize int, timeout time.Duration) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultConfig().BufferSize
	}
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	return &Dispatcher{
		publisher: publisher,
		timeout:   timeout,
		queue:     make(chan *Event, bufferSize),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Dispatch queues an event for publication. Returns false if it was dropped.
func (d *Dispatcher) Dispatch(event *Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.dropped.Add(1)
		return false
	}

	select {
	case d.queue <- event:
		return true
	default:
		d.dropped.Add(1)
		l := pkglog.L()
		l.Warn().Str(pkglog.FieldEventType, event.Type).Msg("event buffer full, dropping event")
		return false
	}
}

// Run publishes queued events until ctx is cancelled or Close is called.
// Events still buffered at that point are flushed before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)

	for {
		select {
		case event := <-d.queue:
			d.publish(event)
		case <-ctx.Done():
			d.stop()
			d.drain()
			return nil
		case <-d.closed:
			d.drain()
			return nil
		}
	}
}

// Close stops accepting events and waits for Run to flush and return.
// Run must have been started. Calling Close more than once is safe.
func (d *Dispatcher) Close() {
	d.stop()
	<-d.done
}

func (d *Dispatcher) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.stopped {
		d.stopped = true
		close(d.closed)
	}
}

// Stats returns published, failed and dropped counts.
func (d *Dispatcher) Stats() (published, failed, dropped uint64) {
	return d.published.Load(), d.failed.Load(), d.dropped.Load()
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.publish(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, event); err != nil {
		d.failed.Add(1)
		l := pkglog.L()
		l.Error().Err(err).Str(pkglog.FieldEventType, event.Type).Msg("failed to publish event")
		return
	}
	d.published.Add(1)
}
