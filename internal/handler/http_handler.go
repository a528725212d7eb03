package handler

import (
	"embed"
	"encoding/json"
	"net/http"

	"github.com/weiawesome/wes-io-live/relay-service/internal/service"
)

//go:embed static/index.html
var static embed.FS

// HTTPHandler serves the viewer page and the relay status endpoints.
type HTTPHandler struct {
	service service.RelayService
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(svc service.RelayService) *HTTPHandler {
	return &HTTPHandler{
		service: svc,
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	ProducerConnected bool   `json:"producer_connected"`
	ViewerCount       int    `json:"viewer_count"`
	FramesForwarded   uint64 `json:"frames_forwarded"`
	FramesDropped     uint64 `json:"frames_dropped"`
}

// Index handles GET /
func (h *HTTPHandler) Index(w http.ResponseWriter, r *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "viewer page unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(page)
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := h.service.Status()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{
		Status:            "ok",
		ProducerConnected: st.ProducerConnected,
		ViewerCount:       st.ViewerCount,
		FramesForwarded:   st.FramesForwarded,
		FramesDropped:     st.FramesDropped,
	})
}

// Status handles GET /api/v1/status
func (h *HTTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.Status())
}
