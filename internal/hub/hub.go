package hub

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/relay-service/internal/config"
	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
)

const defaultWriteWait = 10 * time.Second

// Listener is told about connection lifecycle changes. Callbacks run on the
// connection's goroutine and must not block.
type Listener interface {
	OnProducerConnected(producerID string, viewerCount int)
	OnProducerDisconnected(producerID, reason string, viewerCount int)
	OnProducerRejected(producerID string)
	OnViewerJoined(viewerID string, viewerCount int)
	OnViewerLeft(viewerID, reason string, viewerCount int)
}

// NopListener ignores every callback.
type NopListener struct{}

func (NopListener) OnProducerConnected(string, int)            {}
func (NopListener) OnProducerDisconnected(string, string, int) {}
func (NopListener) OnProducerRejected(string)                  {}
func (NopListener) OnViewerJoined(string, int)                 {}
func (NopListener) OnViewerLeft(string, string, int)           {}

// Hub relays frames from the single producer to every viewer.
type Hub struct {
	ws       config.WebSocketConfig
	relay    config.RelayConfig
	policy   domain.DropPolicy
	listener Listener

	registry    *Registry
	broadcaster *Broadcaster
	slot        *ProducerSlot

	rejections atomic.Uint64
	closed     atomic.Bool
}

// New creates a hub. A nil listener is replaced by NopListener.
func New(ws config.WebSocketConfig, relay config.RelayConfig, listener Listener) (*Hub, error) {
	policy, err := domain.ParseDropPolicy(relay.DropPolicy)
	if err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}
	if relay.ViewerQueueSize < 1 {
		return nil, fmt.Errorf("hub: viewer queue size must be at least 1, got %d", relay.ViewerQueueSize)
	}
	if relay.ConflictCloseCode == 0 {
		relay.ConflictCloseCode = domain.CloseSlotConflict
	}
	if listener == nil {
		listener = NopListener{}
	}

	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, relay.StatusNotices)

	return &Hub{
		ws:          ws,
		relay:       relay,
		policy:      policy,
		listener:    listener,
		registry:    registry,
		broadcaster: broadcaster,
		slot:        NewProducerSlot(broadcaster),
	}, nil
}

// Slot returns the producer slot.
func (h *Hub) Slot() *ProducerSlot { return h.slot }

// Registry returns the viewer registry.
func (h *Hub) Registry() *Registry { return h.registry }

// AdmitProducer moves p to OPEN if the slot is free. A rejected producer is
// closed with the conflict code and the current occupant is not touched.
func (h *Hub) AdmitProducer(p *Producer) error {
	if h.closed.Load() {
		p.closeWith(websocket.CloseGoingAway, domain.ReasonShutdown, domain.ReasonShutdown)
		return domain.ErrShuttingDown
	}

	if err := h.slot.TryAcquire(p); err != nil {
		if !errors.Is(err, domain.ErrSlotConflict) {
			return err
		}
		h.rejections.Add(1)
		p.closeWith(h.relay.ConflictCloseCode, domain.CloseReasonSlotConflict, domain.ReasonConflict)
		h.listener.OnProducerRejected(p.ID)
		return err
	}
	h.listener.OnProducerConnected(p.ID, h.registry.Len())

	// Shutdown may have swept the slot before p took it.
	if h.closed.Load() {
		p.Close(websocket.CloseGoingAway, domain.ReasonShutdown)
		return domain.ErrShuttingDown
	}
	return nil
}

// AdmitViewer moves v to OPEN and registers it. From then on v receives
// every frame broadcast until it closes.
func (h *Hub) AdmitViewer(v *Viewer) error {
	if h.closed.Load() {
		v.Close(websocket.CloseGoingAway, domain.ReasonShutdown)
		return domain.ErrShuttingDown
	}

	if err := v.lifecycle.Open(); err != nil {
		return err
	}
	if err := h.broadcaster.Join(v); err != nil {
		v.Close(websocket.CloseInternalServerErr, domain.ReasonError)
		return err
	}
	h.listener.OnViewerJoined(v.ID, h.registry.Len())

	if h.closed.Load() {
		v.Close(websocket.CloseGoingAway, domain.ReasonShutdown)
		return domain.ErrShuttingDown
	}
	return nil
}

// Shutdown closes the producer and every viewer with CloseGoingAway and
// refuses later admissions.
func (h *Hub) Shutdown() {
	h.closed.Store(true)

	if p := h.slot.Occupant(); p != nil {
		p.Close(websocket.CloseGoingAway, domain.ReasonShutdown)
	}
	for _, v := range h.registry.Snapshot() {
		v.Close(websocket.CloseGoingAway, domain.ReasonShutdown)
	}
}

// Stats returns a snapshot of the relay state and counters.
func (h *Hub) Stats() domain.RelayStatus {
	forwarded, dropped := h.broadcaster.Stats()
	viewers := h.registry.Snapshot()

	status := domain.RelayStatus{
		ViewerCount:        len(viewers),
		FramesForwarded:    forwarded,
		FramesDiscarded:    h.slot.Discarded(),
		FramesDropped:      dropped,
		ProducerRejections: h.rejections.Load(),
		LastSeq:            h.broadcaster.LastSeq(),
	}
	if p := h.slot.Occupant(); p != nil {
		since := p.connectedAt
		status.ProducerConnected = true
		status.ProducerID = p.ID
		status.ProducerSince = &since
	}

	status.Viewers = make([]domain.ViewerStatus, 0, len(viewers))
	for _, v := range viewers {
		status.Viewers = append(status.Viewers, v.Status())
	}
	sort.Slice(status.Viewers, func(i, j int) bool {
		return status.Viewers[i].ConnectedAt.Before(status.Viewers[j].ConnectedAt)
	})
	return status
}

func (h *Hub) producerLeft(p *Producer, reason string) {
	if h.slot.Release(p) {
		h.listener.OnProducerDisconnected(p.ID, reason, h.registry.Len())
	}
}

func (h *Hub) viewerLeft(v *Viewer, reason string) {
	if h.registry.Unregister(v) {
		h.listener.OnViewerLeft(v.ID, reason, h.registry.Len())
	}
}

// keepAlive arms read deadlines refreshed by pongs when pings are enabled
// and reports whether they are.
func (h *Hub) keepAlive(conn Conn) bool {
	if h.ws.PingInterval <= 0 {
		return false
	}
	conn.SetReadDeadline(time.Now().Add(h.ws.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.ws.PongWait))
		return nil
	})
	return true
}

func (h *Hub) writeWait() time.Duration {
	if h.ws.WriteWait > 0 {
		return h.ws.WriteWait
	}
	return defaultWriteWait
}
