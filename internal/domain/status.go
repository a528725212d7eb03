package domain

import "time"

// RelayStatus is a point-in-time view of the relay, served by the status API.
type RelayStatus struct {
	ProducerConnected  bool           `json:"producer_connected"`
	ProducerID         string         `json:"producer_id,omitempty"`
	ProducerSince      *time.Time     `json:"producer_since,omitempty"`
	ViewerCount        int            `json:"viewer_count"`
	FramesForwarded    uint64         `json:"frames_forwarded"`
	FramesDiscarded    uint64         `json:"frames_discarded"`
	FramesDropped      uint64         `json:"frames_dropped"`
	ProducerRejections uint64         `json:"producer_rejections"`
	LastSeq            uint64         `json:"last_seq"`
	Viewers            []ViewerStatus `json:"viewers,omitempty"`
}

// ViewerStatus describes one registered viewer session.
type ViewerStatus struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	Queued      int       `json:"queued"`
	Enqueued    uint64    `json:"enqueued"`
	Dropped     uint64    `json:"dropped"`
	Sent        uint64    `json:"sent"`
}
