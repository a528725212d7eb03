package hub

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
)

// Conn is the part of *websocket.Conn the relay uses. Sessions depend on it
// instead of the concrete type so they can run against in-memory fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// closeReasonFor maps a read error to the reason reported to listeners.
func closeReasonFor(err error) string {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return domain.ReasonClosed
	}
	return domain.ReasonError
}

// closeCodeFor picks the close code answering a read error. Only a clean
// close from the peer is answered with a normal closure.
func closeCodeFor(err error) int {
	switch {
	case closeReasonFor(err) == domain.ReasonClosed:
		return websocket.CloseNormalClosure
	case errors.Is(err, websocket.ErrReadLimit):
		return websocket.CloseMessageTooBig
	default:
		return websocket.CloseInternalServerErr
	}
}

// sendClose writes a close frame best-effort and closes the connection.
// WriteControl may run concurrently with an in-flight WriteMessage; the
// library serializes them so the close frame never splits a data frame.
func sendClose(conn Conn, code int, text string, wait time.Duration) {
	if wait <= 0 {
		wait = time.Second
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wait))
	_ = conn.Close()
}
