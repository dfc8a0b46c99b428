package reporting

import (
	"fmt"
	"sync"
	"time"
)

// EventHandler is a function that processes events.
type EventHandler func(LifecycleEvent)

// EventFilter is a function that determines if an event should be delivered.
type EventFilter func(LifecycleEvent) bool

// EventSubscription represents one subscriber attached to the bus. A
// subscription delivers either through a handler, a channel, or both.
type EventSubscription struct {
	ID      string
	Filter  EventFilter
	Handler EventHandler
	Channel chan LifecycleEvent

	mu     sync.RWMutex
	closed bool
}

// Close closes the subscription and its channel, if any.
func (s *EventSubscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		if s.Channel != nil {
			close(s.Channel)
		}
		s.closed = true
	}
}

// IsClosed returns whether the subscription is closed.
func (s *EventSubscription) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// EventBus provides publish/subscribe distribution of endpoint lifecycle
// events. One connection manager publishes; any number of callers (the
// TUI, isolate waiters, external consumers) subscribe.
type EventBus interface {
	// Publish delivers an event to all matching subscriptions. Publishing
	// on a closed bus is a no-op.
	Publish(event LifecycleEvent)

	// Subscribe attaches a handler-based subscription. handler runs on
	// its own goroutine per event.
	Subscribe(filter EventFilter, handler EventHandler) *EventSubscription

	// SubscribeChannel attaches a channel-based subscription. Delivery is
	// non-blocking: if the subscriber falls behind the buffer, events are
	// dropped for that subscriber rather than stalling the publisher.
	SubscribeChannel(filter EventFilter, bufferSize int) *EventSubscription

	// Unsubscribe detaches and closes a subscription.
	Unsubscribe(subscription *EventSubscription)

	// Metrics returns delivery counters.
	Metrics() EventBusMetrics

	// Close closes the bus and every remaining subscription.
	Close()
}

// EventBusMetrics tracks bus activity.
type EventBusMetrics struct {
	ActiveSubscriptions int
	EventsPublished     int64
	EventsDelivered     int64
	EventsDropped       int64
	LastEventTime       time.Time
}

// DefaultEventBus is the default implementation of EventBus.
type DefaultEventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*EventSubscription
	metrics       EventBusMetrics
	subIDCounter  int64
	closed        bool
}

// NewEventBus creates a new event bus.
func NewEventBus() EventBus {
	return &DefaultEventBus{
		subscriptions: make(map[string]*EventSubscription),
	}
}

// Publish delivers event to all matching subscriptions.
func (eb *DefaultEventBus) Publish(event LifecycleEvent) {
	eb.mu.RLock()
	if eb.closed {
		eb.mu.RUnlock()
		return
	}
	// Snapshot so delivery happens outside the lock.
	subs := make([]*EventSubscription, 0, len(eb.subscriptions))
	for _, s := range eb.subscriptions {
		subs = append(subs, s)
	}
	eb.mu.RUnlock()

	var delivered, dropped int64
	for _, sub := range subs {
		if sub.IsClosed() {
			eb.Unsubscribe(sub)
			continue
		}
		if sub.Filter != nil && !sub.Filter(event) {
			continue
		}

		if sub.Handler != nil {
			go sub.Handler(event)
			delivered++
		}
		if sub.Channel != nil {
			select {
			case sub.Channel <- event:
				delivered++
			default:
				dropped++
			}
		}
	}

	eb.mu.Lock()
	eb.metrics.EventsPublished++
	eb.metrics.EventsDelivered += delivered
	eb.metrics.EventsDropped += dropped
	eb.metrics.LastEventTime = event.Time
	eb.mu.Unlock()
}

// Subscribe attaches a handler-based subscription.
func (eb *DefaultEventBus) Subscribe(filter EventFilter, handler EventHandler) *EventSubscription {
	return eb.add(&EventSubscription{Filter: filter, Handler: handler})
}

// SubscribeChannel attaches a channel-based subscription.
func (eb *DefaultEventBus) SubscribeChannel(filter EventFilter, bufferSize int) *EventSubscription {
	return eb.add(&EventSubscription{
		Filter:  filter,
		Channel: make(chan LifecycleEvent, bufferSize),
	})
}

func (eb *DefaultEventBus) add(sub *EventSubscription) *EventSubscription {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return nil
	}
	eb.subIDCounter++
	sub.ID = fmt.Sprintf("sub-%d", eb.subIDCounter)
	eb.subscriptions[sub.ID] = sub
	eb.metrics.ActiveSubscriptions++
	return sub
}

// Unsubscribe detaches and closes a subscription.
func (eb *DefaultEventBus) Unsubscribe(subscription *EventSubscription) {
	if subscription == nil {
		return
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if _, exists := eb.subscriptions[subscription.ID]; exists {
		subscription.Close()
		delete(eb.subscriptions, subscription.ID)
		eb.metrics.ActiveSubscriptions--
	}
}

// Metrics returns a copy of the delivery counters.
func (eb *DefaultEventBus) Metrics() EventBusMetrics {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return eb.metrics
}

// Close closes the bus and every remaining subscription. Subscribers see
// their channels close, which is the "stream ended" signal.
func (eb *DefaultEventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	for id, sub := range eb.subscriptions {
		sub.Close()
		delete(eb.subscriptions, id)
	}
	eb.metrics.ActiveSubscriptions = 0
}
