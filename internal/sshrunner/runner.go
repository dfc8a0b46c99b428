package sshrunner

import (
	"context"
	"fmt"
	"net"
	"strings"

	"vmlink/internal/proc"
	"vmlink/pkg/logging"
)

// Runner executes commands on the target device over an established SSH
// session and returns stdout split into lines.
type Runner interface {
	// Run executes command remotely. The returned slice holds one entry
	// per line of stdout with trailing newlines stripped.
	Run(ctx context.Context, command string) ([]string, error)

	// Address returns the device address this runner is bound to.
	Address() string
}

// SSHRunner shells out to the ssh binary for every command. It relies on
// SSH connection multiplexing (via the user's config) to keep repeated
// invocations cheap.
type SSHRunner struct {
	proc       proc.Runner
	address    string
	iface      string
	configPath string
}

// New creates an SSHRunner bound to address. iface is only meaningful for
// IPv6 link-local addresses and is appended as address%iface. configPath,
// when non-empty, is passed to ssh as -F.
func New(p proc.Runner, address, iface, configPath string) *SSHRunner {
	return &SSHRunner{
		proc:       p,
		address:    address,
		iface:      iface,
		configPath: configPath,
	}
}

// Address returns the device address this runner is bound to.
func (r *SSHRunner) Address() string {
	return r.address
}

// Run executes command on the device and returns stdout as lines.
func (r *SSHRunner) Run(ctx context.Context, command string) ([]string, error) {
	argv := []string{"ssh"}
	if r.configPath != "" {
		argv = append(argv, "-F", r.configPath)
	}
	argv = append(argv, TargetHost(r.address, r.iface), command)

	logging.Debug("SSHRunner", "Running remote command: %v", argv)

	result, err := r.proc.Run(ctx, argv)
	if err != nil {
		return nil, fmt.Errorf("ssh invocation failed: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("remote command %q exited %d: %s",
			command, result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	stdout := strings.TrimSuffix(result.Stdout, "\n")
	if stdout == "" {
		return nil, nil
	}
	return strings.Split(stdout, "\n"), nil
}

// TargetHost combines a device address with an optional outgoing interface.
// The %iface suffix is the OpenSSH spelling for IPv6 link-local scope ids;
// it is ignored for IPv4 addresses.
func TargetHost(address, iface string) string {
	if iface == "" {
		return address
	}
	ip := net.ParseIP(address)
	if ip == nil || ip.To4() != nil {
		return address
	}
	return address + "%" + iface
}
