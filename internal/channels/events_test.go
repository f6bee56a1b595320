package channels

import (
	"testing"
	"time"
)

func TestPublishModuleStateNonBlocking(t *testing.T) {
	events := NewEvents(2)

	ev := ModuleStateEvent{ModuleID: 1, Module: "m", EventType: "down", Timestamp: time.Now()}
	if !events.PublishModuleState(ev) {
		t.Fatal("publish into empty buffer should succeed")
	}
	if !events.PublishModuleState(ev) {
		t.Fatal("publish into non-full buffer should succeed")
	}

	// Buffer full: publish must drop instead of blocking.
	if events.PublishModuleState(ev) {
		t.Error("publish into full buffer should report a drop")
	}

	if got := len(events.ModuleState); got != 2 {
		t.Errorf("buffered events = %d, want 2", got)
	}
}

func TestEventsClose(t *testing.T) {
	events := NewEvents(1)
	if err := events.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case <-events.Done():
	default:
		t.Error("Done channel should be closed after Close")
	}
}

func TestNewEventsDefaultBuffer(t *testing.T) {
	events := NewEvents(0)
	if cap(events.ModuleState) != 50 {
		t.Errorf("default buffer = %d, want 50", cap(events.ModuleState))
	}
}
