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

// Producer is the connection supplying frames.
type Producer struct {
	ID string

	conn        Conn
	hub         *Hub
	lifecycle   *domain.Lifecycle
	connectedAt time.Time
	done        chan struct{}
	received    atomic.Uint64
	logger      zerolog.Logger
}

// NewProducer wraps conn in a CONNECTING producer session.
func NewProducer(ctx context.Context, id string, conn Conn, h *Hub) *Producer {
	return &Producer{
		ID:          id,
		conn:        conn,
		hub:         h,
		lifecycle:   domain.NewLifecycle(),
		connectedAt: time.Now(),
		done:        make(chan struct{}),
		logger: pkglog.Ctx(ctx).With().
			Str(pkglog.FieldConnID, id).
			Str(pkglog.FieldRole, string(domain.RoleProducer)).
			Logger(),
	}
}

// State returns the connection state.
func (p *Producer) State() domain.ConnState {
	return p.lifecycle.State()
}

// Received returns how many frames the producer sent.
func (p *Producer) Received() uint64 {
	return p.received.Load()
}

// ReadPump forwards every non-empty binary message as one frame until the
// connection fails or closes. Text messages are ignored.
func (p *Producer) ReadPump() {
	code, reason := websocket.CloseNormalClosure, domain.ReasonClosed
	defer func() {
		p.Close(code, reason)
	}()

	p.conn.SetReadLimit(p.hub.ws.MaxMessageSize)
	if p.hub.keepAlive(p.conn) {
		go p.pingLoop()
	}

	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				p.logger.Warn().Err(err).Msg("producer read error")
			}
			code, reason = closeCodeFor(err), closeReasonFor(err)
			return
		}
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		p.received.Add(1)
		p.hub.slot.forward(p, data)
	}
}

func (p *Producer) pingLoop() {
	ticker := time.NewTicker(p.hub.ws.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(p.hub.writeWait())
			if err := p.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				p.logger.Debug().Err(err).Msg("producer ping failed")
				p.Close(websocket.CloseGoingAway, domain.ReasonWriteFail)
				return
			}
		}
	}
}

// Close releases the slot if p holds it and closes the connection with code.
// Only the first call has any effect.
func (p *Producer) Close(code int, reason string) {
	p.closeWith(code, reason, reason)
}

func (p *Producer) closeWith(code int, text, reason string) {
	if !p.lifecycle.BeginClose() {
		return
	}
	close(p.done)

	p.hub.producerLeft(p, reason)
	sendClose(p.conn, code, text, p.hub.writeWait())
	p.lifecycle.Finish()

	p.logger.Debug().
		Int(pkglog.FieldCloseCode, code).
		Str(pkglog.FieldReason, reason).
		Msg("producer session closed")
}
