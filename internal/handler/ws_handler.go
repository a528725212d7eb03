package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/relay-service/internal/config"
	"github.com/weiawesome/wes-io-live/relay-service/internal/hub"
	pkglog "github.com/weiawesome/wes-io-live/relay-service/pkg/log"
)

// WSHandler upgrades producer and viewer connections and hands them to the hub.
type WSHandler struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // viewers are anonymous and pages may be served from anywhere
			},
		},
	}
}

// HandleProducer handles GET /ws/producer. The connection is always
// accepted; a producer arriving while the slot is taken is then closed with
// the conflict code.
func (h *WSHandler) HandleProducer(w http.ResponseWriter, r *http.Request) {
	l := pkglog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("producer upgrade failed")
		return
	}

	p := hub.NewProducer(r.Context(), uuid.New().String(), conn, h.hub)
	if err := h.hub.AdmitProducer(p); err != nil {
		l.Debug().Err(err).Str(pkglog.FieldConnID, p.ID).Msg("producer not admitted")
		return
	}

	p.ReadPump()
}

// HandleViewer handles GET /ws/viewer.
func (h *WSHandler) HandleViewer(w http.ResponseWriter, r *http.Request) {
	l := pkglog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("viewer upgrade failed")
		return
	}

	v := hub.NewViewer(r.Context(), uuid.New().String(), conn, h.hub)
	if err := h.hub.AdmitViewer(v); err != nil {
		l.Debug().Err(err).Str(pkglog.FieldConnID, v.ID).Msg("viewer not admitted")
		return
	}

	go v.WritePump()
	v.ReadPump()
}
