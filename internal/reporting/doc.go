// Package reporting carries the endpoint lifecycle event stream.
//
// The connection manager publishes a LifecycleEvent whenever an endpoint
// appears (forwarded for the first time) or disappears (evicted after a
// failed probe). Consumers subscribe with a filter and receive events
// through a callback or a buffered channel. Channel delivery never blocks
// the publisher; slow consumers drop events instead.
package reporting
