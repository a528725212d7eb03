package handler

import (
	"github.com/gorilla/mux"
)

// NewRouter wires the relay routes.
func NewRouter(ws *WSHandler, api *HTTPHandler) *mux.Router {
	router := mux.NewRouter()

	// WebSocket endpoints
	router.HandleFunc("/ws/producer", ws.HandleProducer).Methods("GET")
	router.HandleFunc("/ws/viewer", ws.HandleViewer).Methods("GET")

	// HTTP endpoints
	router.HandleFunc("/", api.Index).Methods("GET")
	router.HandleFunc("/health", api.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/status", api.Status).Methods("GET")

	return router
}
