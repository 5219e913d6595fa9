package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	got := make(chan Event, 1)
	bus.Subscribe(EventTaskCompleted, func(ev Event) {
		got <- ev
	})

	bus.Publish(Event{Name: EventTaskCompleted, RunID: "r1", TaskID: "build"})

	select {
	case ev := <-got:
		if ev.RunID != "r1" || ev.TaskID != "build" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestBusOnlyMatchingNameDelivered(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var count atomic.Int64
	bus.Subscribe(EventTaskFailed, func(ev Event) {
		count.Add(1)
	})

	bus.Publish(Event{Name: EventTaskCompleted})
	bus.Publish(Event{Name: EventTaskFailed})

	deadline := time.Now().Add(time.Second)
	for count.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Give any stray delivery a moment to land.
	time.Sleep(10 * time.Millisecond)
	if n := count.Load(); n != 1 {
		t.Errorf("expected 1 delivery, got %d", n)
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		bus.Subscribe(EventWorkflowStarted, func(ev Event) {
			wg.Done()
		})
	}

	bus.Publish(Event{Name: EventWorkflowStarted})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for both subscribers")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var count atomic.Int64
	token := bus.Subscribe(EventTaskStarted, func(ev Event) {
		count.Add(1)
	})
	bus.Unsubscribe(token)

	bus.Publish(Event{Name: EventTaskStarted})
	time.Sleep(20 * time.Millisecond)

	if n := count.Load(); n != 0 {
		t.Errorf("expected no deliveries after unsubscribe, got %d", n)
	}
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	bus.Subscribe(EventTaskStarted, func(ev Event) {
		once.Do(func() { close(started) })
		<-block
	})

	// First event occupies the handler; fill the buffer past capacity.
	bus.Publish(Event{Name: EventTaskStarted})
	<-started
	for i := 0; i < 70; i++ {
		bus.Publish(Event{Name: EventTaskStarted})
	}
	close(block)

	if bus.DroppedCount() == 0 {
		t.Error("expected dropped events once subscriber buffer filled")
	}
}

func TestBusPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewEventBus()

	var count atomic.Int64
	bus.Subscribe(EventTaskStarted, func(ev Event) {
		count.Add(1)
	})
	bus.Close()

	bus.Publish(Event{Name: EventTaskStarted})
	time.Sleep(10 * time.Millisecond)

	if n := count.Load(); n != 0 {
		t.Errorf("expected no deliveries after close, got %d", n)
	}
}
