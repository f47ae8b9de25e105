package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventUploadProgress)

	bus.PublishUploadProgress("Q1.pdf", 42, 42, 100)

	select {
	case received := <-ch:
		progress, ok := received.(*UploadProgressEvent)
		if !ok {
			t.Fatal("Expected UploadProgressEvent")
		}
		if progress.FileName != "Q1.pdf" {
			t.Errorf("Expected file name 'Q1.pdf', got '%s'", progress.FileName)
		}
		if progress.Percent != 42 {
			t.Errorf("Expected 42%%, got %d", progress.Percent)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventError)
	ch2 := bus.Subscribe(EventError)

	bus.PublishError("list", "request", errors.New("boom"))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.(*ErrorEvent).Operation != "list" {
				t.Errorf("subscriber %d: unexpected operation %q", i, ev.(*ErrorEvent).Operation)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d did not receive the event", i)
		}
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	all := bus.SubscribeAll()

	bus.PublishPath([]string{"F1"}, []string{"Reports"})
	bus.PublishVersions("F1", "Q1.pdf", 2, true)

	want := []EventType{EventPathChanged, EventVersionsChanged}
	for _, w := range want {
		select {
		case ev := <-all:
			if ev.Type() != w {
				t.Errorf("got %s, want %s", ev.Type(), w)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for %s", w)
		}
	}
}

func TestEventBus_FullBufferDrops(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	_ = bus.Subscribe(EventFileListChanged)

	bus.PublishFileList("folder", "F1", "", 1, "name", "asc")
	bus.PublishFileList("folder", "F1", "", 2, "name", "asc")

	if got := bus.GetDroppedEventCount(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
}

func TestEventBus_ClosedBus(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventSessionInvalidated)
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}

	// Publishing after close must not panic.
	bus.PublishSessionInvalidated("alice", "expired")

	late := bus.Subscribe(EventSessionInvalidated)
	if _, ok := <-late; ok {
		t.Error("subscription on closed bus should be closed")
	}
}

func TestEventBus_NilBusDiscards(t *testing.T) {
	var bus *EventBus
	bus.PublishUploadState("a.txt", "F1", "in_flight", 0, nil)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventUploadState)
	bus.Unsubscribe(EventUploadState, ch)

	bus.PublishUploadState("a.txt", "F1", "succeeded", 100, nil)

	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed and empty")
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}
