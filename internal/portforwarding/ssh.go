package portforwarding

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"vmlink/internal/proc"
	"vmlink/internal/sshrunner"
	"vmlink/pkg/logging"
)

const stopTimeout = 10 * time.Second

// SSHFactory establishes forwards by driving the external ssh binary with
// a local-forward (-L) specification. It is the production Factory.
type SSHFactory struct {
	proc       proc.Runner
	address    string
	iface      string
	configPath string
	ipv6       bool
	loopback   string
}

// NewSSHFactory creates a Factory that forwards ports to address. iface
// and configPath follow the same rules as sshrunner.New.
func NewSSHFactory(p proc.Runner, address, iface, configPath string) *SSHFactory {
	ip := net.ParseIP(address)
	ipv6 := ip != nil && ip.To4() == nil
	loopback := "127.0.0.1"
	if ipv6 {
		loopback = "::1"
	}
	return &SSHFactory{
		proc:       p,
		address:    address,
		iface:      iface,
		configPath: configPath,
		ipv6:       ipv6,
		loopback:   loopback,
	}
}

// Start binds an ephemeral loopback port, then asks ssh to forward it to
// remotePort on the device. The ssh client is run with -f so the call
// blocks exactly until the forward is confirmed; a non-zero exit means the
// forward was refused and is reported as ErrUnavailable.
func (f *SSHFactory) Start(ctx context.Context, remotePort int) (Forwarder, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(f.loopback, "0"))
	if err != nil {
		return nil, fmt.Errorf("%w: binding local port: %v", ErrUnavailable, err)
	}
	localPort := listener.Addr().(*net.TCPAddr).Port

	fwd := &sshForwarder{
		proc:       f.proc,
		host:       sshrunner.TargetHost(f.address, f.iface),
		configPath: f.configPath,
		ipv6:       f.ipv6,
		loopback:   f.loopback,
		localPort:  localPort,
		remotePort: remotePort,
	}

	// The listener only reserves the port while we pick it; ssh has to
	// bind the same port itself, so the reservation is released just
	// before the client starts. The window in between is accepted.
	if err := listener.Close(); err != nil {
		return nil, fmt.Errorf("%w: releasing port reservation: %v", ErrUnavailable, err)
	}

	argv := fwd.startArgs()
	logging.Debug("SSHForwarder", "Establishing forward %s via: %v", fwd.forwardSpec(), argv)

	result, err := f.proc.Run(ctx, argv)
	if err != nil {
		return nil, fmt.Errorf("starting ssh forward: %w", err)
	}
	if result.ExitCode != 0 {
		logging.Warn("SSHForwarder", "ssh refused forward %s (exit %d): %s",
			fwd.forwardSpec(), result.ExitCode, result.Stderr)
		return nil, fmt.Errorf("%w: ssh exited %d", ErrUnavailable, result.ExitCode)
	}

	logging.Info("SSHForwarder", "Forwarding local port %d to remote port %d", localPort, remotePort)
	return fwd, nil
}

// sshForwarder is one established -L tunnel. The backgrounded ssh client
// owns the local socket; Stop cancels the forward over the control channel
// using the exact spec it was started with.
type sshForwarder struct {
	proc       proc.Runner
	host       string
	configPath string
	ipv6       bool
	loopback   string
	localPort  int
	remotePort int

	mu      sync.Mutex
	stopped bool
}

// LocalPort returns the ephemeral local port of the tunnel.
func (p *sshForwarder) LocalPort() int {
	return p.localPort
}

// RemotePort returns the remote port of the tunnel.
func (p *sshForwarder) RemotePort() int {
	return p.remotePort
}

// Stop cancels the forward. Cancellation failures are logged but never
// propagated: the ssh client exits with the master connection either way,
// and surfacing the failure would only stop callers from releasing the
// rest of their tunnels. Stop is a no-op after the first call.
func (p *sshForwarder) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	argv := p.cancelArgs()
	logging.Debug("SSHForwarder", "Cancelling forward %s via: %v", p.forwardSpec(), argv)

	result, err := p.proc.Run(ctx, argv)
	if err != nil {
		logging.Warn("SSHForwarder", "Failed to run ssh cancel for %s: %v", p.forwardSpec(), err)
		return nil
	}
	if result.ExitCode != 0 {
		logging.Warn("SSHForwarder", "ssh cancel for %s exited %d: %s",
			p.forwardSpec(), result.ExitCode, result.Stderr)
		return nil
	}

	logging.Info("SSHForwarder", "Stopped forwarding local port %d to remote port %d", p.localPort, p.remotePort)
	return nil
}

// forwardSpec renders the -L argument. The destination loopback matches
// the address family of the tunnel so the remote end dials the interface
// the service actually listens on.
func (p *sshForwarder) forwardSpec() string {
	if p.ipv6 {
		return fmt.Sprintf("%d:[%s]:%d", p.localPort, p.loopback, p.remotePort)
	}
	return fmt.Sprintf("%d:%s:%d", p.localPort, p.loopback, p.remotePort)
}

func (p *sshForwarder) baseArgs() []string {
	argv := []string{"ssh"}
	if p.configPath != "" {
		argv = append(argv, "-F", p.configPath)
	}
	if p.ipv6 {
		argv = append(argv, "-6")
	}
	return argv
}

func (p *sshForwarder) startArgs() []string {
	argv := p.baseArgs()
	argv = append(argv,
		"-nNT",
		"-f",
		"-o", "ExitOnForwardFailure=yes",
		"-L", p.forwardSpec(),
		p.host,
	)
	return argv
}

func (p *sshForwarder) cancelArgs() []string {
	argv := p.baseArgs()
	argv = append(argv,
		"-O", "cancel",
		"-L", p.forwardSpec(),
		p.host,
	)
	return argv
}
