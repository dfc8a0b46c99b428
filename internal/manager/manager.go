package manager

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"vmlink/internal/portforwarding"
	"vmlink/internal/proc"
	"vmlink/internal/reporting"
	"vmlink/internal/sshrunner"
	"vmlink/pkg/logging"
)

const (
	// DefaultPollInterval is the pause between discovery cycles.
	DefaultPollInterval = 1500 * time.Millisecond

	// DefaultRPCTimeout bounds each individual RPC round trip, including
	// the lazy connect that may precede it.
	DefaultRPCTimeout = 10 * time.Second

	// DefaultIsolateWaitTimeout bounds MainIsolatesByPattern when the
	// caller does not supply a deadline.
	DefaultIsolateWaitTimeout = time.Minute

	ipv4Loopback = "127.0.0.1"
	ipv6Loopback = "::1"

	subsystem = "ConnectionManager"
)

// Endpoint is a read-only snapshot of one tracked endpoint.
type Endpoint struct {
	RemotePort int
	LocalPort  int
	URI        string
}

// Manager maintains live connections to every VM service endpoint on one
// target device. Create it with Connect; release it with Stop.
type Manager struct {
	address       string
	loopback      string
	iface         string
	sshConfigPath string

	runner  sshrunner.Runner
	factory portforwarding.Factory
	connect VMConnector
	bus     reporting.EventBus

	pollInterval time.Duration
	rpcTimeout   time.Duration

	mu         sync.Mutex
	forwarders map[int]portforwarding.Forwarder // keyed by remote port
	clients    map[int]VMService                // keyed by local port
	stale      map[int]struct{}                 // remote ports, cleared each discovery cycle
	stopped    bool

	done     chan struct{}
	loopDone chan struct{}
}

// Option customizes a Manager before its initial discovery pass runs.
type Option func(*Manager)

// WithInterface sets the outgoing interface for IPv6 link-local addresses.
func WithInterface(iface string) Option {
	return func(m *Manager) { m.iface = iface }
}

// WithSSHConfig sets an ssh config file passed as -F to every invocation.
func WithSSHConfig(path string) Option {
	return func(m *Manager) { m.sshConfigPath = path }
}

// WithPollInterval overrides the discovery loop interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithRPCTimeout overrides the per-RPC deadline.
func WithRPCTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.rpcTimeout = d
		}
	}
}

// WithForwarderFactory replaces the SSH forwarding strategy.
func WithForwarderFactory(f portforwarding.Factory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithVMConnector replaces how VM service sessions are opened.
func WithVMConnector(c VMConnector) Option {
	return func(m *Manager) { m.connect = c }
}

// WithRunner replaces the SSH command runner.
func WithRunner(r sshrunner.Runner) Option {
	return func(m *Manager) { m.runner = r }
}

// Connect validates address, runs one synchronous forward-and-discover
// pass against the device, and starts the background discovery loop.
// address must be an IPv4 or IPv6 literal; all local connections use the
// loopback of the matching address family, since a mismatched family would
// be refused by the tunnel's local socket.
func Connect(address string, opts ...Option) (*Manager, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, fmt.Errorf("%w: %q is not an IPv4 or IPv6 literal", ErrInvalidAddress, address)
	}

	loopback := ipv4Loopback
	if ip.To4() == nil {
		loopback = ipv6Loopback
	}

	m := &Manager{
		address:      address,
		loopback:     loopback,
		pollInterval: DefaultPollInterval,
		rpcTimeout:   DefaultRPCTimeout,
		forwarders:   make(map[int]portforwarding.Forwarder),
		clients:      make(map[int]VMService),
		stale:        make(map[int]struct{}),
		done:         make(chan struct{}),
		loopDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = reporting.NewEventBus()
	}
	if m.runner == nil {
		m.runner = sshrunner.New(proc.NewExecRunner(), address, m.iface, m.sshConfigPath)
	}
	if m.factory == nil {
		m.factory = portforwarding.NewSSHFactory(proc.NewExecRunner(), address, m.iface, m.sshConfigPath)
	}
	if m.connect == nil {
		m.connect = defaultConnector
	}

	// Bootstrap pass: forward whatever discovery finds, then verify it.
	// Event emission is suppressed so subscribers attaching after Connect
	// returns do not see spurious history.
	ctx := context.Background()
	m.discoverAndForward(ctx, false)
	m.checkEndpoints(ctx, false)

	go m.pollLoop()

	logging.Info(subsystem, "Connected to %s, tracking %d endpoint(s)", address, len(m.Endpoints()))
	return m, nil
}

// Stop halts polling, closes every cached VM service client, tears down
// every forwarder, and closes the event bus. It waits for any in-flight
// poll cycle to finish (in-progress RPCs complete or time out naturally)
// before tearing down, and it is idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.done)
	forwarders := m.forwarders
	clients := m.clients
	m.forwarders = make(map[int]portforwarding.Forwarder)
	m.clients = make(map[int]VMService)
	m.stale = make(map[int]struct{})
	m.mu.Unlock()

	<-m.loopDone

	for remotePort, fwd := range forwarders {
		if svc, ok := clients[fwd.LocalPort()]; ok {
			if err := svc.Close(); err != nil {
				logging.Debug(subsystem, "Closing vm service for remote port %d: %v", remotePort, err)
			}
			delete(clients, fwd.LocalPort())
		}
		if err := fwd.Stop(); err != nil {
			logging.Warn(subsystem, "Stopping forwarder for remote port %d: %v", remotePort, err)
		}
	}
	// Clients without a matching forwarder (transient, evicted mid-call)
	// still hold sockets.
	for _, svc := range clients {
		_ = svc.Close()
	}

	m.bus.Close()
	logging.Info(subsystem, "Stopped connection manager for %s", m.address)
}

// Address returns the device address the manager is connected to.
func (m *Manager) Address() string {
	return m.address
}

// Events returns the lifecycle event bus. It is closed by Stop.
func (m *Manager) Events() reporting.EventBus {
	return m.bus
}

// Endpoints returns a snapshot of all tracked endpoints in ascending
// remote-port order.
func (m *Manager) Endpoints() []Endpoint {
	m.mu.Lock()
	endpoints := make([]Endpoint, 0, len(m.forwarders))
	for remotePort, fwd := range m.forwarders {
		endpoints = append(endpoints, Endpoint{
			RemotePort: remotePort,
			LocalPort:  fwd.LocalPort(),
			URI:        m.loopbackURI(fwd.LocalPort()),
		})
	}
	m.mu.Unlock()

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].RemotePort < endpoints[j].RemotePort
	})
	return endpoints
}

// loopbackURI renders the websocket URI for a forwarded local port.
func (m *Manager) loopbackURI(localPort int) string {
	return "ws://" + net.JoinHostPort(m.loopback, strconv.Itoa(localPort)) + "/ws"
}
