package domain

import "time"

// Frame is one opaque payload forwarded by the producer. Data is shared
// read-only by every viewer that receives the frame.
type Frame struct {
	Seq        uint64
	Data       []byte
	ReceivedAt time.Time
}

// EnvelopeKind tells the write pump how to put an envelope on the wire.
type EnvelopeKind int

const (
	// KindFrame is sent as one binary message.
	KindFrame EnvelopeKind = iota
	// KindNotice is sent as one text message.
	KindNotice
)

// Envelope is an item waiting in a viewer's outbound queue.
type Envelope struct {
	Kind    EnvelopeKind
	Seq     uint64
	Payload []byte
}

// FrameEnvelope wraps a frame for queueing.
func FrameEnvelope(f Frame) Envelope {
	return Envelope{Kind: KindFrame, Seq: f.Seq, Payload: f.Data}
}

// NoticeEnvelope wraps a text status notice for queueing.
func NoticeEnvelope(text string) Envelope {
	return Envelope{Kind: KindNotice, Payload: []byte(text)}
}

// Status notices sent to viewers as text messages.
const (
	NoticeProducerConnected    = "producer:connected"
	NoticeProducerDisconnected = "producer:disconnected"
)

// Role distinguishes the two kinds of relay connections.
type Role string

const (
	RoleProducer Role = "producer"
	RoleViewer   Role = "viewer"
)
