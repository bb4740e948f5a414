package events

import (
	"fmt"
	"testing"
	"time"
)

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 10)

	event := TaskStartedEvent{
		ID:         "task-1",
		Capability: "shell",
		Locks:      "git",
		Timestamp:  time.Now(),
	}

	bus.Publish(TopicTask, event)

	select {
	case received := <-ch:
		if received.TaskID() != "task-1" {
			t.Errorf("expected task ID 'task-1', got '%s'", received.TaskID())
		}
		if received.EventType() != EventTypeTaskStarted {
			t.Errorf("expected event type '%s', got '%s'", EventTypeTaskStarted, received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicTask, 10)
	ch2 := bus.Subscribe(TopicTask, 10)

	event := TaskSucceededEvent{
		ID:        "task-2",
		Attempts:  1,
		Duration:  100 * time.Millisecond,
		Timestamp: time.Now(),
	}

	bus.Publish(TopicTask, event)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.TaskID() != "task-2" {
				t.Errorf("subscriber %d: expected task ID 'task-2', got '%s'", i+1, received.TaskID())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestNonBlockingSend verifies that publishing doesn't block when channels are full.
func TestNonBlockingSend(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Subscribe with buffer size 1
	ch := bus.Subscribe(TopicTask, 1)

	// Publish 10 events - should not deadlock
	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			event := TaskStartedEvent{
				ID:         fmt.Sprintf("task-%d", i),
				Capability: "shell",
				Timestamp:  time.Now(),
			}
			bus.Publish(TopicTask, event)
		}
		done <- true
	}()

	// Publisher should complete immediately (non-blocking)
	select {
	case <-done:
		// Success - publisher didn't block
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publisher blocked (expected non-blocking behavior)")
	}

	// Verify we received at least one event (buffer size 1)
	select {
	case received := <-ch:
		if received == nil {
			t.Error("received nil event")
		}
	default:
		t.Error("expected at least one event in buffer")
	}
}

// TestUnsubscribe verifies a removed subscriber stops receiving and its
// channel closes, while other subscribers are unaffected.
func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	gone := bus.Subscribe(TopicTask, 10)
	kept := bus.Subscribe(TopicTask, 10)
	all := bus.SubscribeAll(10)

	bus.Unsubscribe(gone)
	bus.Unsubscribe(all)

	bus.Publish(TopicTask, TaskStartedEvent{ID: "task-1", Timestamp: time.Now()})

	if _, ok := <-gone; ok {
		t.Error("unsubscribed channel received an event")
	}
	if _, ok := <-all; ok {
		t.Error("unsubscribed all-topics channel received an event")
	}

	select {
	case received := <-kept:
		if received.TaskID() != "task-1" {
			t.Errorf("expected task ID 'task-1', got '%s'", received.TaskID())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("remaining subscriber did not receive the event")
	}

	// Foreign and already-removed channels are ignored.
	bus.Unsubscribe(gone)
	bus.Unsubscribe(make(chan Event))
}

// TestCloseSignalsSubscribers verifies that closing the bus closes subscriber channels.
func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe(TopicTask, 10)

	bus.Close()

	// Channel should be closed (range loop should exit immediately)
	received := 0
	for range ch {
		received++
	}

	if received != 0 {
		t.Errorf("expected 0 events after close, got %d", received)
	}
}

// TestPublishAfterClose verifies publishing after close doesn't panic.
func TestPublishAfterClose(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicTask, 10)

	bus.Close()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("publishing after close caused panic: %v", r)
		}
	}()

	bus.Publish(TopicTask, TaskStartedEvent{ID: "task-1", Timestamp: time.Now()})

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received event after bus was closed")
		}
	default:
		// Expected - channel closed, no data
	}
}

// TestMultipleTopics verifies topic isolation.
func TestMultipleTopics(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	taskCh := bus.Subscribe(TopicTask, 10)
	runCh := bus.Subscribe(TopicRun, 10)

	taskEvent := TaskStartedEvent{
		ID:         "task-1",
		Capability: "shell",
		Timestamp:  time.Now(),
	}

	runEvent := RunProgressEvent{
		Total:     10,
		Succeeded: 5,
		Running:   2,
		Pending:   3,
		Timestamp: time.Now(),
	}

	bus.Publish(TopicTask, taskEvent)
	bus.Publish(TopicRun, runEvent)

	// Task channel should receive the task event
	select {
	case received := <-taskCh:
		if received.EventType() != EventTypeTaskStarted {
			t.Errorf("task channel: expected task event, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("task channel: timeout waiting for event")
	}

	// Run channel should receive the run event
	select {
	case received := <-runCh:
		if received.EventType() != EventTypeRunProgress {
			t.Errorf("run channel: expected run event, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("run channel: timeout waiting for event")
	}

	// Neither channel should see the other topic's event
	select {
	case <-taskCh:
		t.Error("task channel received unexpected event")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}

	select {
	case <-runCh:
		t.Error("run channel received unexpected event")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

// TestSubscribeAll verifies that SubscribeAll receives events from all topics.
func TestSubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	allCh := bus.SubscribeAll(20)

	bus.Publish(TopicTask, TaskStartedEvent{ID: "task-1", Capability: "shell", Timestamp: time.Now()})
	bus.Publish(TopicRun, RunProgressEvent{Total: 10, Succeeded: 5, Running: 2, Pending: 3, Timestamp: time.Now()})

	receivedTypes := make(map[string]bool)

	for i := 0; i < 2; i++ {
		select {
		case received := <-allCh:
			receivedTypes[received.EventType()] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}

	if !receivedTypes[EventTypeTaskStarted] {
		t.Error("SubscribeAll did not receive the task event")
	}
	if !receivedTypes[EventTypeRunProgress] {
		t.Error("SubscribeAll did not receive the run event")
	}

	select {
	case <-allCh:
		t.Error("received unexpected third event")
	case <-time.After(10 * time.Millisecond):
		// Expected - no more events
	}
}
