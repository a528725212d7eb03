package hub

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/relay-service/pkg/log"
)

// Inbound viewer messages are discarded, so they only need to fit control
// frames and the odd keepalive text.
const viewerReadLimit = 4096

// Viewer is one viewer connection: a bounded outbound queue drained by a
// dedicated write pump.
type Viewer struct {
	ID string

	conn        Conn
	hub         *Hub
	queue       *FrameQueue
	lifecycle   *domain.Lifecycle
	connectedAt time.Time
	done        chan struct{}
	sent        atomic.Uint64
	logger      zerolog.Logger
}

// NewViewer wraps conn in a CONNECTING viewer session. The logger carried by
// ctx is used for the lifetime of the session.
func NewViewer(ctx context.Context, id string, conn Conn, h *Hub) *Viewer {
	return &Viewer{
		ID:          id,
		conn:        conn,
		hub:         h,
		queue:       NewFrameQueue(h.relay.ViewerQueueSize, h.policy),
		lifecycle:   domain.NewLifecycle(),
		connectedAt: time.Now(),
		done:        make(chan struct{}),
		logger: pkglog.Ctx(ctx).With().
			Str(pkglog.FieldConnID, id).
			Str(pkglog.FieldRole, string(domain.RoleViewer)).
			Logger(),
	}
}

// State returns the connection state.
func (v *Viewer) State() domain.ConnState {
	return v.lifecycle.State()
}

// Enqueue queues env for sending and reports whether something was dropped.
// It never blocks.
func (v *Viewer) Enqueue(env domain.Envelope) bool {
	dropped := v.queue.Push(env)
	if dropped {
		v.logger.Debug().Uint64(pkglog.FieldSeq, env.Seq).Msg("viewer queue full, dropped frame")
	}
	return dropped
}

// WritePump sends queued envelopes in order until the session closes.
func (v *Viewer) WritePump() {
	var ping <-chan time.Time
	if v.hub.ws.PingInterval > 0 {
		ticker := time.NewTicker(v.hub.ws.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-v.done:
			return

		case <-v.queue.Ready():
			if err := v.drain(); err != nil {
				v.logger.Debug().Err(err).Msg("viewer write failed")
				v.Close(websocket.CloseGoingAway, domain.ReasonWriteFail)
				return
			}

		case <-ping:
			deadline := time.Now().Add(v.hub.writeWait())
			if err := v.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				v.logger.Debug().Err(err).Msg("viewer ping failed")
				v.Close(websocket.CloseGoingAway, domain.ReasonWriteFail)
				return
			}
		}
	}
}

func (v *Viewer) drain() error {
	for {
		env, ok := v.queue.Pop()
		if !ok {
			return nil
		}
		if !v.lifecycle.IsOpen() {
			return nil
		}

		messageType := websocket.BinaryMessage
		if env.Kind == domain.KindNotice {
			messageType = websocket.TextMessage
		}
		v.conn.SetWriteDeadline(time.Now().Add(v.hub.writeWait()))
		if err := v.conn.WriteMessage(messageType, env.Payload); err != nil {
			return err
		}
		v.sent.Add(1)
	}
}

// ReadPump discards inbound messages so close frames and pongs are handled,
// and closes the session when the peer goes away.
func (v *Viewer) ReadPump() {
	code, reason := websocket.CloseNormalClosure, domain.ReasonClosed
	defer func() {
		v.Close(code, reason)
	}()

	v.conn.SetReadLimit(viewerReadLimit)
	v.hub.keepAlive(v.conn)

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				v.logger.Debug().Err(err).Msg("viewer read error")
			}
			code, reason = closeCodeFor(err), closeReasonFor(err)
			return
		}
	}
}

// Close tears the session down: it leaves the registry, discards whatever
// is still queued and closes the connection with code. Only the first call
// has any effect.
func (v *Viewer) Close(code int, reason string) {
	if !v.lifecycle.BeginClose() {
		return
	}
	close(v.done)

	v.hub.viewerLeft(v, reason)
	discarded := v.queue.Close()
	sendClose(v.conn, code, reason, v.hub.writeWait())
	v.lifecycle.Finish()

	v.logger.Debug().
		Int(pkglog.FieldCloseCode, code).
		Str(pkglog.FieldReason, reason).
		Int(pkglog.FieldDropped, discarded).
		Msg("viewer session closed")
}

// Status returns the session counters.
func (v *Viewer) Status() domain.ViewerStatus {
	enqueued, dropped := v.queue.Stats()
	return domain.ViewerStatus{
		ID:          v.ID,
		ConnectedAt: v.connectedAt,
		Queued:      v.queue.Len(),
		Enqueued:    enqueued,
		Dropped:     dropped,
		Sent:        v.sent.Load(),
	}
}
