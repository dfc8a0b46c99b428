package reporting

import (
	"fmt"
	"time"
)

// EventKind discriminates lifecycle events on the stream.
type EventKind string

const (
	// KindStarted is emitted when a newly discovered endpoint has been
	// forwarded and is believed live.
	KindStarted EventKind = "endpoint.started"
	// KindStopped is emitted when a tracked endpoint failed a probe and
	// was evicted.
	KindStopped EventKind = "endpoint.stopped"
)

// LifecycleEvent describes one endpoint topology change. Events are
// immutable once constructed and are published in the order their causing
// condition was detected.
type LifecycleEvent struct {
	Kind       EventKind
	RemotePort int
	URI        string
	Time       time.Time
}

// NewLifecycleEvent constructs an event stamped with the current time.
func NewLifecycleEvent(kind EventKind, remotePort int, uri string) LifecycleEvent {
	return LifecycleEvent{
		Kind:       kind,
		RemotePort: remotePort,
		URI:        uri,
		Time:       time.Now(),
	}
}

// String returns a human-readable description of the event.
func (e LifecycleEvent) String() string {
	return fmt.Sprintf("[%s] remote port %d (%s)", e.Kind, e.RemotePort, e.URI)
}

// KindFilter returns an EventFilter matching only events of kind.
func KindFilter(kind EventKind) EventFilter {
	return func(e LifecycleEvent) bool {
		return e.Kind == kind
	}
}
