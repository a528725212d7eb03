package hub

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type message struct {
	typ  int
	data []byte
}

// fakeConn is an in-memory Conn. Tests feed inbound messages through send
// and observe writes on the written channel.
type fakeConn struct {
	inbound chan message
	written chan message
	readErr chan error

	mu        sync.Mutex
	closeCode int
	closeText string
	failWrite bool
	gate      chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
	peer      chan struct{}
	peerOnce  sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan message, 64),
		written: make(chan message, 256),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
		peer:    make(chan struct{}),
	}
}

var errConnClosed = errors.New("use of closed network connection")

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.inbound:
		return m.typ, m.data, nil
	case err := <-c.readErr:
		return 0, nil, err
	case <-c.peer:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	gate, fail := c.gate, c.failWrite
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-c.closed:
			return errConnClosed
		}
	}
	if fail {
		return errors.New("broken pipe")
	}
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.written <- message{typ: messageType, data: data}
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType != websocket.CloseMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeCode == 0 && len(data) >= 2 {
		c.closeCode = int(binary.BigEndian.Uint16(data))
		c.closeText = string(data[2:])
	}
	return nil
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// send delivers an inbound message as if the peer wrote it.
func (c *fakeConn) send(typ int, data []byte) {
	c.inbound <- message{typ: typ, data: data}
}

// hangUp makes the peer close the connection normally.
func (c *fakeConn) hangUp() {
	c.peerOnce.Do(func() { close(c.peer) })
}

// failRead makes the next read return err.
func (c *fakeConn) failRead(err error) {
	c.readErr <- err
}

// hold blocks writes until release is called.
func (c *fakeConn) hold() {
	c.mu.Lock()
	c.gate = make(chan struct{})
	c.mu.Unlock()
}

func (c *fakeConn) release() {
	c.mu.Lock()
	gate := c.gate
	c.gate = nil
	c.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (c *fakeConn) breakWrites() {
	c.mu.Lock()
	c.failWrite = true
	c.mu.Unlock()
}

func (c *fakeConn) sentClose() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeText
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// next waits for the next written message.
func (c *fakeConn) next(t *testing.T) message {
	t.Helper()
	select {
	case m := <-c.written:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a write")
		return message{}
	}
}

// expectSilence fails if anything is written within d.
func (c *fakeConn) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case m := <-c.written:
		t.Fatalf("unexpected write: type=%d data=%q", m.typ, m.data)
	case <-time.After(d):
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
