package domain

// Close codes used by the relay.
const (
	// CloseSlotConflict tells a second producer the slot is taken. The code
	// is otherwise unused by the protocol.
	CloseSlotConflict = 4000
	// CloseReasonSlotConflict accompanies CloseSlotConflict.
	CloseReasonSlotConflict = "producer slot occupied"
)

// Reasons a connection left the relay, reported to listeners and events.
const (
	ReasonClosed    = "closed"
	ReasonError     = "error"
	ReasonWriteFail = "write_failed"
	ReasonShutdown  = "shutdown"
	ReasonConflict  = "slot_conflict"
)
