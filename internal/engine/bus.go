package engine

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handler consumes events delivered by the bus.
type Handler func(Event)

// subscription is one registered handler plus its delivery channel.
// Each subscription is drained by its own goroutine so a slow handler
// never blocks the scheduler.
type subscription struct {
	name EventName
	ch   chan Event
	done chan struct{}
}

// EventBus provides publish/subscribe delivery of engine events.
// It is process-wide and append-mostly: subscriptions are expected to be
// registered up front, but registration during active runs is safe.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[EventName]map[string]*subscription
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[EventName]map[string]*subscription),
	}
}

// Subscribe registers a handler for the named event and returns a token that
// can be passed to Unsubscribe. The handler runs on a dedicated goroutine.
func (b *EventBus) Subscribe(name EventName, h Handler) string {
	token := uuid.New().String()

	sub := &subscription{
		name: name,
		ch:   make(chan Event, 64),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return token
	}
	if b.subs[name] == nil {
		b.subs[name] = make(map[string]*subscription)
	}
	b.subs[name][token] = sub
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		for {
			select {
			case ev := <-sub.ch:
				h(ev)
			case <-sub.done:
				// Drain anything already buffered before exiting.
				for {
					select {
					case ev := <-sub.ch:
						h(ev)
					default:
						return
					}
				}
			}
		}
	}()

	return token
}

// Unsubscribe removes the subscription identified by token.
// It is a no-op for unknown tokens.
func (b *EventBus) Unsubscribe(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, subs := range b.subs {
		if sub, ok := subs[token]; ok {
			close(sub.done)
			delete(subs, token)
			if len(subs) == 0 {
				delete(b.subs, name)
			}
			return
		}
	}
}

// Publish delivers the event to every subscriber of its name.
// Delivery is non-blocking: if a subscriber's buffer is full the event is
// dropped for that subscriber and counted.
func (b *EventBus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs[ev.Name] {
		select {
		case sub.ch <- ev:
		default:
			count := b.dropped.Add(1)
			if count%10 == 1 { // Log every 10th drop to avoid spam.
				log.Printf("[engine] WARNING: subscriber buffer full, dropped event (total dropped: %d): name=%s", count, ev.Name)
			}
		}
	}
}

// DroppedCount returns the total number of events dropped across subscribers.
func (b *EventBus) DroppedCount() uint64 {
	return b.dropped.Load()
}

// Close stops all subscriptions and waits for their handlers to drain.
// Publish becomes a no-op after Close.
func (b *EventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.done)
		}
	}
	b.subs = make(map[EventName]map[string]*subscription)
	b.mu.Unlock()

	b.wg.Wait()
}
