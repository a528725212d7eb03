package events

import (
	"context"
	"time"
)

// Event types describing relay connection lifecycle changes.
const (
	EventProducerConnected    = "producer_connected"
	EventProducerDisconnected = "producer_disconnected"
	EventProducerRejected     = "producer_rejected"
	EventViewerJoined         = "viewer_joined"
	EventViewerLeft           = "viewer_left"
)

// Event is a lifecycle change published to the event bus.
type Event struct {
	Type         string `json:"type"`
	InstanceID   string `json:"instance_id"`
	ConnectionID string `json:"connection_id"`
	Reason       string `json:"reason,omitempty"`
	ViewerCount  int    `json:"viewer_count"`
	Timestamp    int64  `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType, instanceID, connID string) *Event {
	return &Event{
		Type:         eventType,
		InstanceID:   instanceID,
		ConnectionID: connID,
		Timestamp:    time.Now().UnixMilli(),
	}
}

// Publisher publishes lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
