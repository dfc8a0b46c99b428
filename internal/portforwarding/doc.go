// Package portforwarding provides SSH tunnel management for vmlink.
//
// This package owns the local half of every forwarded VM-service endpoint:
// it picks an ephemeral local port, drives the external ssh binary to
// establish a local forward to the matching remote port on the device, and
// cancels the forward again through the SSH control channel on teardown.
//
// # Forwarding Model
//
// A Forwarder binds exactly one local port to one remote port for its whole
// lifetime. Forwarders are created through a Factory so the connection
// manager never depends on the concrete transport; tests inject an
// in-memory factory, production wires SSHFactory.
//
// # Failure Semantics
//
// Failing to establish a forward is an expected runtime condition (the
// remote endpoint may have vanished between discovery and forwarding), so
// Start reports it as ErrUnavailable rather than a hard error. Callers are
// expected to retry on the next discovery cycle. Teardown failures of the
// SSH control channel are logged and swallowed; the local port is always
// released so repeated churn cannot exhaust the ephemeral range.
package portforwarding
