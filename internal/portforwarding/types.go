package portforwarding

import (
	"context"
	"errors"
)

// ErrUnavailable indicates that a forward could not be established right
// now: either no local port could be bound or the SSH client refused the
// forward. It is a retryable condition, not a fault.
var ErrUnavailable = errors.New("port forwarding unavailable")

// Forwarder is a live tunnel binding a local ephemeral port to a specific
// remote port on the target device.
//
// The local port never changes for the lifetime of a Forwarder. A
// Forwarder is exclusively owned by the connection manager that created
// it; Stop releases the tunnel and the local port, and calling it more
// than once is a no-op.
type Forwarder interface {
	LocalPort() int
	RemotePort() int
	Stop() error
}

// Factory creates Forwarders for remote ports as discovery finds them.
// The connection manager is handed a Factory at construction; swapping it
// out replaces the entire forwarding transport.
type Factory interface {
	// Start establishes a forward to remotePort. It returns
	// ErrUnavailable when forwarding cannot be set up at the moment;
	// callers should retry on a later discovery cycle.
	Start(ctx context.Context, remotePort int) (Forwarder, error)
}
