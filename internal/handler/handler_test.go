package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/relay-service/internal/config"
	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/relay-service/internal/events"
	"github.com/weiawesome/wes-io-live/relay-service/internal/service"
	pkglog "github.com/weiawesome/wes-io-live/relay-service/pkg/log"
)

type testRelay struct {
	server *httptest.Server
	svc    service.RelayService
}

func newTestRelay(t *testing.T, notices bool) *testRelay {
	t.Helper()

	cfg := &config.Config{
		WebSocket: config.WebSocketConfig{
			PongWait:        time.Minute,
			WriteWait:       time.Second,
			MaxMessageSize:  1 << 20,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		Relay: config.RelayConfig{
			InstanceID:        "relay-test",
			ViewerQueueSize:   4,
			DropPolicy:        string(domain.DropOldest),
			ConflictCloseCode: domain.CloseSlotConflict,
			StatusNotices:     notices,
		},
	}

	dispatcher := events.NewDispatcher(events.NopPublisher{}, 16, time.Second)
	svc, err := service.NewRelayService(cfg, dispatcher)
	if err != nil {
		t.Fatalf("NewRelayService() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	logger := pkglog.New(pkglog.Config{Level: "disabled"})
	router := NewRouter(NewWSHandler(svc.Hub(), cfg.WebSocket), NewHTTPHandler(svc))
	server := httptest.NewServer(pkglog.HTTPMiddleware(logger)(router))

	t.Cleanup(func() {
		svc.Stop()
		cancel()
		server.Close()
	})
	return &testRelay{server: server, svc: svc}
}

func (r *testRelay) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (r *testRelay) waitStatus(t *testing.T, what string, cond func(domain.RelayStatus) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond(r.svc.Status()) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s: %+v", what, r.svc.Status())
}

func readMessage(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	return typ, data
}

func expectText(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	typ, data := readMessage(t, conn)
	if typ != websocket.TextMessage || string(data) != want {
		t.Fatalf("got type=%d %q, want text %q", typ, data, want)
	}
}

func expectBinary(t *testing.T, conn *websocket.Conn, want []byte) {
	t.Helper()
	typ, data := readMessage(t, conn)
	if typ != websocket.BinaryMessage || !bytes.Equal(data, want) {
		t.Fatalf("got type=%d %q, want binary %q", typ, data, want)
	}
}

func TestSecondProducerClosedWithConflictCode(t *testing.T) {
	relay := newTestRelay(t, false)

	viewer := relay.dial(t, "/ws/viewer")
	relay.waitStatus(t, "viewer", func(s domain.RelayStatus) bool { return s.ViewerCount == 1 })

	first := relay.dial(t, "/ws/producer")
	relay.waitStatus(t, "producer", func(s domain.RelayStatus) bool { return s.ProducerConnected })

	second := relay.dial(t, "/ws/producer")
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := second.ReadMessage()

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("second producer read error = %v, want a close error", err)
	}
	if closeErr.Code != domain.CloseSlotConflict {
		t.Errorf("close code = %d, want %d", closeErr.Code, domain.CloseSlotConflict)
	}

	// The first producer keeps streaming.
	if err := first.WriteMessage(websocket.BinaryMessage, []byte("F1")); err != nil {
		t.Fatalf("first producer write: %v", err)
	}
	expectBinary(t, viewer, []byte("F1"))

	st := relay.svc.Status()
	if st.ProducerRejections != 1 || !st.ProducerConnected {
		t.Errorf("status = %+v", st)
	}
}

func TestFramesFanOutWithNotices(t *testing.T) {
	relay := newTestRelay(t, true)

	viewers := []*websocket.Conn{relay.dial(t, "/ws/viewer"), relay.dial(t, "/ws/viewer")}
	relay.waitStatus(t, "viewers", func(s domain.RelayStatus) bool { return s.ViewerCount == 2 })
	for _, v := range viewers {
		expectText(t, v, domain.NoticeProducerDisconnected)
	}

	producer := relay.dial(t, "/ws/producer")
	relay.waitStatus(t, "producer", func(s domain.RelayStatus) bool { return s.ProducerConnected })
	for _, v := range viewers {
		expectText(t, v, domain.NoticeProducerConnected)
	}

	frame := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0xff, 0xd9}
	if err := producer.WriteMessage(websocket.BinaryMessage, []byte{}); err != nil {
		t.Fatal(err)
	}
	if err := producer.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatal(err)
	}
	for _, v := range viewers {
		expectBinary(t, v, frame)
	}

	producer.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	for _, v := range viewers {
		expectText(t, v, domain.NoticeProducerDisconnected)
	}
	relay.waitStatus(t, "producer gone", func(s domain.RelayStatus) bool { return !s.ProducerConnected })
	if st := relay.svc.Status(); st.ViewerCount != 2 {
		t.Errorf("viewer count after producer left = %d, want 2", st.ViewerCount)
	}

	// A new producer resumes the stream.
	next := relay.dial(t, "/ws/producer")
	for _, v := range viewers {
		expectText(t, v, domain.NoticeProducerConnected)
	}
	next.WriteMessage(websocket.BinaryMessage, []byte("F2"))
	for _, v := range viewers {
		expectBinary(t, v, []byte("F2"))
	}
}

func TestViewerDisconnectLeavesOthers(t *testing.T) {
	relay := newTestRelay(t, false)

	leaving := relay.dial(t, "/ws/viewer")
	staying := relay.dial(t, "/ws/viewer")
	producer := relay.dial(t, "/ws/producer")
	relay.waitStatus(t, "connections", func(s domain.RelayStatus) bool {
		return s.ViewerCount == 2 && s.ProducerConnected
	})

	leaving.Close()
	relay.waitStatus(t, "viewer left", func(s domain.RelayStatus) bool { return s.ViewerCount == 1 })

	producer.WriteMessage(websocket.BinaryMessage, []byte("F1"))
	expectBinary(t, staying, []byte("F1"))
	if !relay.svc.Status().ProducerConnected {
		t.Error("producer dropped after a viewer left")
	}
}

func TestHealthCheck(t *testing.T) {
	relay := newTestRelay(t, false)
	relay.dial(t, "/ws/viewer")
	relay.waitStatus(t, "viewer", func(s domain.RelayStatus) bool { return s.ViewerCount == 1 })

	resp, err := http.Get(relay.server.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.ProducerConnected || body.ViewerCount != 1 {
		t.Errorf("health = %+v", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestStatusEndpoint(t *testing.T) {
	relay := newTestRelay(t, false)
	relay.dial(t, "/ws/producer")
	relay.waitStatus(t, "producer", func(s domain.RelayStatus) bool { return s.ProducerConnected })

	resp, err := http.Get(relay.server.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var st domain.RelayStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.ProducerConnected || st.ProducerID == "" || st.ProducerSince == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestIndexServesViewerPage(t *testing.T) {
	relay := newTestRelay(t, false)

	resp, err := http.Get(relay.server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"/ws/viewer", domain.NoticeProducerConnected, domain.NoticeProducerDisconnected} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page does not mention %q", want)
		}
	}
}

func TestShutdownClosesWithGoingAway(t *testing.T) {
	relay := newTestRelay(t, false)
	viewer := relay.dial(t, "/ws/viewer")
	relay.waitStatus(t, "viewer", func(s domain.RelayStatus) bool { return s.ViewerCount == 1 })

	relay.svc.Hub().Shutdown()

	viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := viewer.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read error = %v, want going away", err)
	}
}
