package events

import (
	"fmt"
	"os"
	"sync"
	"time"
)

type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// DefaultEventBus is the default implementation of EventBus. Events are
// dispatched from a single goroutine in publish order; handlers for one event
// run sequentially so a subscriber sees events in the order they were queued.
type DefaultEventBus struct {
	subscribers map[EventType][]subscription
	nextSubID   SubscriptionID
	mu          sync.RWMutex

	eventQueue chan Event
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *DefaultEventBus {
	bus := &DefaultEventBus{
		subscribers: make(map[EventType][]subscription),
		nextSubID:   1,
		eventQueue:  make(chan Event, bufferSize),
		stopCh:      make(chan struct{}),
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe registers a handler for a specific event type
func (eb *DefaultEventBus) Subscribe(eventType EventType, handler EventHandler) SubscriptionID {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.nextSubID
	eb.nextSubID++

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscription{
		id:      id,
		handler: handler,
	})
	return id
}

// SubscribeAll registers handler for every known event type and returns the IDs
func (eb *DefaultEventBus) SubscribeAll(handler EventHandler) []SubscriptionID {
	types := AllEventTypes()
	ids := make([]SubscriptionID, 0, len(types))
	for _, t := range types {
		ids = append(ids, eb.Subscribe(t, handler))
	}
	return ids
}

// Unsubscribe removes a subscription by ID
func (eb *DefaultEventBus) Unsubscribe(id SubscriptionID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for eventType, subs := range eb.subscribers {
		for i, sub := range subs {
			if sub.id == id {
				kept := make([]subscription, 0, len(subs)-1)
				kept = append(kept, subs[:i]...)
				eb.subscribers[eventType] = append(kept, subs[i+1:]...)
				return
			}
		}
	}
}

// Publish queues an event, blocking until there is room. Events published
// after Stop are dropped.
func (eb *DefaultEventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-eb.stopCh:
		fmt.Fprintf(os.Stderr, "[EventBus] Dropped event (bus stopped): %v\n", event.Type)
		return
	default:
	}

	select {
	case eb.eventQueue <- event:
	case <-eb.stopCh:
		fmt.Fprintf(os.Stderr, "[EventBus] Dropped event (bus stopped): %v\n", event.Type)
	}
}

// PublishAsync queues an event if there is room and drops it otherwise
func (eb *DefaultEventBus) PublishAsync(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-eb.stopCh:
		return
	default:
	}

	select {
	case eb.eventQueue <- event:
	default:
		fmt.Fprintf(os.Stderr, "[EventBus] Dropped event (queue full): %v\n", event.Type)
	}
}

// Stop stops the event bus after draining queued events. Safe to call twice.
func (eb *DefaultEventBus) Stop() {
	eb.stopOnce.Do(func() {
		close(eb.stopCh)
	})
	eb.wg.Wait()
}

func (eb *DefaultEventBus) processEvents() {
	defer eb.wg.Done()

	for {
		select {
		case event := <-eb.eventQueue:
			eb.dispatch(event)

		case <-eb.stopCh:
			// Drain remaining events before stopping
			for {
				select {
				case event := <-eb.eventQueue:
					eb.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (eb *DefaultEventBus) dispatch(event Event) {
	eb.mu.RLock()
	subs := eb.subscribers[event.Type]
	handlers := make([]EventHandler, len(subs))
	for i, sub := range subs {
		handlers[i] = sub.handler
	}
	eb.mu.RUnlock()

	for _, handler := range handlers {
		safeHandlerCall(handler, event)
	}
}

func safeHandlerCall(handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "[EventBus] Handler panic for event %v: %v\n", event.Type, r)
		}
	}()

	handler(event)
}

// GetSubscriberCount returns the number of subscribers for an event type
func (eb *DefaultEventBus) GetSubscriberCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	return len(eb.subscribers[eventType])
}

// GetQueueSize returns the current number of events in the queue
func (eb *DefaultEventBus) GetQueueSize() int {
	return len(eb.eventQueue)
}
