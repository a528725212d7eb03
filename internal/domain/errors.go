package domain

import "errors"

var (
	// ErrSlotConflict is returned when a producer tries to take an occupied slot.
	ErrSlotConflict = errors.New("producer slot occupied")

	// ErrNotOpen is returned when an operation requires an OPEN connection.
	ErrNotOpen = errors.New("connection not open")

	// ErrAlreadyClosed is benign: the connection already finished closing.
	ErrAlreadyClosed = errors.New("connection already closed")

	// ErrInvalidTransition is returned for transitions the lifecycle forbids,
	// such as opening a connection that is already closing.
	ErrInvalidTransition = errors.New("invalid connection state transition")

	// ErrShuttingDown is returned for connections arriving during shutdown.
	ErrShuttingDown = errors.New("relay shutting down")
)
