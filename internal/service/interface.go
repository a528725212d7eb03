package service

import (
	"context"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/relay-service/internal/hub"
)

// RelayService owns the relay hub and reports its lifecycle changes.
type RelayService interface {
	hub.Listener

	// Hub returns the hub connections are admitted to.
	Hub() *hub.Hub

	// Status returns the current relay state.
	Status() domain.RelayStatus

	// Start publishes lifecycle events until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop closes every connection and flushes pending events.
	Stop() error
}
