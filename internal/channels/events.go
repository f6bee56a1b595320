// Package channels provides typed Go channels for event-driven
// signalling between the checker pool and its consumers.
package channels

import (
	"time"
)

// ModuleStateEvent is published when a module crosses the
// consecutive-failure threshold in either direction.
type ModuleStateEvent struct {
	ModuleID  int32
	Module    string
	Host      string
	EventType string // "down", "recovered"
	Failures  int    // only used when EventType == "down"
	Timestamp time.Time
}

// Events provides typed channels for all pool events.
type Events struct {
	ModuleState chan ModuleStateEvent

	// Graceful shutdown
	done chan struct{}
}

// NewEvents creates a new Events hub with the configured buffer size.
func NewEvents(bufferSize int) *Events {
	if bufferSize <= 0 {
		bufferSize = 50
	}
	return &Events{
		ModuleState: make(chan ModuleStateEvent, bufferSize),
		done:        make(chan struct{}),
	}
}

// PublishModuleState sends a module state event without blocking the
// caller. Returns false if the channel buffer is full and the event was
// dropped.
func (e *Events) PublishModuleState(ev ModuleStateEvent) bool {
	select {
	case e.ModuleState <- ev:
		return true
	default:
		return false
	}
}

// Close gracefully shuts down all channels.
func (e *Events) Close() error {
	close(e.done)
	close(e.ModuleState)
	return nil
}

// Done returns a channel that's closed when the Events hub is shutting down.
func (e *Events) Done() <-chan struct{} {
	return e.done
}
