package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Service
	FieldService  = "service"
	FieldInstance = "instance_id"

	// Connection
	FieldConnID      = "conn_id"
	FieldRole        = "role"
	FieldState       = "state"
	FieldCloseCode   = "close_code"
	FieldReason      = "reason"
	FieldViewerCount = "viewer_count"

	// Frames
	FieldSeq       = "seq"
	FieldFrameSize = "frame_size"
	FieldDropped   = "dropped"

	// Events
	FieldEventType = "event_type"
	FieldDriver    = "driver"
)
