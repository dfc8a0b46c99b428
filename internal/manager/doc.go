// Package manager owns every live connection to a target device.
//
// A Manager is created with Connect against a device address reachable
// over SSH. It discovers VM service ports on the device, keeps one SSH
// port forward per discovered port, lazily connects a VM service client
// through each forward, and continuously re-runs discovery on a background
// poll loop, evicting endpoints whose liveness probe fails.
//
// # Topology
//
// The authoritative endpoint set is a map from remote port to its
// forwarder. A VM service client cache keyed by local port hangs off it,
// and a stale-port set suppresses immediate re-forwarding of ports that
// just failed. One mutex guards all three; every mutation happens in a
// straight-line section between I/O suspension points, which keeps the
// poll loop and concurrent query calls from ever observing a half-updated
// topology.
//
// # Queries
//
// Query operations (isolate search, view listing) fan out over all tracked
// endpoints in ascending remote-port order. An endpoint failing with a
// connection-refused or timed-out condition is evicted and the query
// proceeds with the remainder; any other error aborts the query, because
// it indicates an integration bug rather than a dead endpoint.
//
// # Events
//
// Topology changes are published on a reporting.EventBus: KindStarted when
// a new endpoint is forwarded, KindStopped when one is evicted. Within a
// poll cycle, stopped events always precede started events, since eviction
// runs before re-discovery. Stop closes the bus.
package manager
