package service

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-live/relay-service/internal/config"
	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/relay-service/internal/events"
	"github.com/weiawesome/wes-io-live/relay-service/internal/hub"
	pkglog "github.com/weiawesome/wes-io-live/relay-service/pkg/log"
)

type relayService struct {
	hub        *hub.Hub
	dispatcher *events.Dispatcher
	instanceID string
}

// NewRelayService creates the relay hub with the service as its listener.
func NewRelayService(cfg *config.Config, dispatcher *events.Dispatcher) (RelayService, error) {
	s := &relayService{
		dispatcher: dispatcher,
		instanceID: cfg.Relay.InstanceID,
	}

	h, err := hub.New(cfg.WebSocket, cfg.Relay, s)
	if err != nil {
		return nil, fmt.Errorf("create hub: %w", err)
	}
	s.hub = h
	return s, nil
}

func (s *relayService) Hub() *hub.Hub {
	return s.hub
}

func (s *relayService) Status() domain.RelayStatus {
	return s.hub.Stats()
}

func (s *relayService) Start(ctx context.Context) error {
	l := pkglog.L()
	l.Info().Str(pkglog.FieldInstance, s.instanceID).Msg("relay service started")
	return s.dispatcher.Run(ctx)
}

func (s *relayService) Stop() error {
	s.hub.Shutdown()
	s.dispatcher.Close()

	published, failed, dropped := s.dispatcher.Stats()
	l := pkglog.L()
	l.Info().
		Uint64("events_published", published).
		Uint64("events_failed", failed).
		Uint64("events_dropped", dropped).
		Msg("relay service stopped")
	return nil
}

func (s *relayService) OnProducerConnected(producerID string, viewerCount int) {
	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldConnID, producerID).
		Int(pkglog.FieldViewerCount, viewerCount).
		Msg("producer connected")
	s.emit(events.EventProducerConnected, producerID, "", viewerCount)
}

func (s *relayService) OnProducerDisconnected(producerID, reason string, viewerCount int) {
	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldConnID, producerID).
		Str(pkglog.FieldReason, reason).
		Int(pkglog.FieldViewerCount, viewerCount).
		Msg("producer disconnected")
	s.emit(events.EventProducerDisconnected, producerID, reason, viewerCount)
}

func (s *relayService) OnProducerRejected(producerID string) {
	l := pkglog.L()
	l.Warn().
		Str(pkglog.FieldConnID, producerID).
		Msg("producer rejected, slot occupied")
	s.emit(events.EventProducerRejected, producerID, domain.ReasonConflict, s.hub.Registry().Len())
}

func (s *relayService) OnViewerJoined(viewerID string, viewerCount int) {
	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldConnID, viewerID).
		Int(pkglog.FieldViewerCount, viewerCount).
		Msg("viewer joined")
	s.emit(events.EventViewerJoined, viewerID, "", viewerCount)
}

func (s *relayService) OnViewerLeft(viewerID, reason string, viewerCount int) {
	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldConnID, viewerID).
		Str(pkglog.FieldReason, reason).
		Int(pkglog.FieldViewerCount, viewerCount).
		Msg("viewer left")
	s.emit(events.EventViewerLeft, viewerID, reason, viewerCount)
}

func (s *relayService) emit(eventType, connID, reason string, viewerCount int) {
	event := events.NewEvent(eventType, s.instanceID, connID)
	event.Reason = reason
	event.ViewerCount = viewerCount
	s.dispatcher.Dispatch(event)
}
