package domain

import "fmt"

// DropPolicy decides what a full viewer queue gives up to make room.
type DropPolicy string

const (
	// DropOldest discards the oldest unsent item and keeps the new one.
	DropOldest DropPolicy = "drop_oldest"
	// DropNewest keeps the queue as is and discards the incoming item.
	DropNewest DropPolicy = "drop_newest"
)

// ParseDropPolicy validates a configured policy name. Empty means DropOldest.
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch DropPolicy(s) {
	case "", DropOldest:
		return DropOldest, nil
	case DropNewest:
		return DropNewest, nil
	default:
		return "", fmt.Errorf("unknown drop policy %q", s)
	}
}
