package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vmlink/internal/portforwarding"
	"vmlink/internal/reporting"
	"vmlink/internal/sshrunner"
	"vmlink/pkg/logging"
)

// ServicePortDirectory is the well-known path on the device holding one
// file per open VM service port, named by port number. Listing it is the
// whole discovery protocol; it is explicitly provisional, so callers must
// tolerate empty or partial results.
const ServicePortDirectory = "/tmp/dart.services"

// pollLoop drives discovery until Stop is called. Each cycle probes the
// tracked endpoints first and only then re-discovers, so the stopped
// events of a cycle are always flushed before its started events are
// computed.
func (m *Manager) pollLoop() {
	defer close(m.loopDone)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			ctx := context.Background()
			m.checkEndpoints(ctx, true)
			m.discoverAndForward(ctx, true)
		}
	}
}

// checkEndpoints probes every tracked endpoint with a getVersion RPC and
// evicts the ones that are unreachable.
func (m *Manager) checkEndpoints(ctx context.Context, emit bool) {
	err := m.invokeAcrossAll(ctx, emit, func(cctx context.Context, svc VMService) error {
		_, err := svc.Version(cctx)
		return err
	})
	if err != nil {
		logging.Error(subsystem, err, "Endpoint probe sweep failed")
	}
}

// discoverAndForward lists the device's service ports and starts a
// forwarder for every port not already tracked and not marked stale this
// cycle. Discovery failure is logged and retried on the next cycle.
func (m *Manager) discoverAndForward(ctx context.Context, emit bool) {
	ports, err := m.DeviceServicePorts(ctx)
	if err != nil {
		logging.Warn(subsystem, "Service port discovery failed: %v", err)
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	var candidates []int
	seen := make(map[int]struct{}, len(ports))
	for _, port := range ports {
		if _, dup := seen[port]; dup {
			continue
		}
		seen[port] = struct{}{}
		if _, tracked := m.forwarders[port]; tracked {
			continue
		}
		if _, isStale := m.stale[port]; isStale {
			logging.Debug(subsystem, "Skipping stale remote port %d this cycle", port)
			continue
		}
		candidates = append(candidates, port)
	}
	// Staleness only suppresses re-forwarding within the cycle that saw
	// the failure. A port showing up in a later listing is eligible
	// again, whether it is the old process recovering or a new one that
	// reused the number.
	m.stale = make(map[int]struct{})
	m.mu.Unlock()

	for _, port := range candidates {
		fwd, err := m.factory.Start(ctx, port)
		if err != nil {
			if errors.Is(err, portforwarding.ErrUnavailable) {
				logging.Warn(subsystem, "Forwarding unavailable for remote port %d, will retry: %v", port, err)
			} else {
				logging.Error(subsystem, err, "Starting forwarder for remote port %d", port)
			}
			continue
		}

		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			_ = fwd.Stop()
			return
		}
		m.forwarders[port] = fwd
		m.mu.Unlock()

		logging.Info(subsystem, "Tracking new endpoint: remote port %d via local port %d", port, fwd.LocalPort())
		if emit {
			m.bus.Publish(reporting.NewLifecycleEvent(reporting.KindStarted, port, m.loopbackURI(fwd.LocalPort())))
		}
	}
}

// DeviceServicePorts lists the currently open VM service ports on the
// device, in listing order.
func (m *Manager) DeviceServicePorts(ctx context.Context) ([]int, error) {
	return DiscoverServicePorts(ctx, m.runner)
}

// DiscoverServicePorts runs the discovery listing over runner. It is also
// usable without a Manager, e.g. for a one-shot port listing.
func DiscoverServicePorts(ctx context.Context, runner sshrunner.Runner) ([]int, error) {
	lines, err := runner.Run(ctx, "ls "+ServicePortDirectory)
	if err != nil {
		return nil, fmt.Errorf("listing device service ports: %w", err)
	}
	return parseServicePorts(lines), nil
}

// parseServicePorts extracts port numbers from ls output. Each line
// contributes the token after its last whitespace run; "." and ".." and
// anything that does not parse as a port number are dropped silently.
func parseServicePorts(lines []string) []int {
	var ports []int
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		token := fields[len(fields)-1]
		if token == "." || token == ".." {
			continue
		}
		port, err := strconv.ParseUint(token, 10, 16)
		if err != nil {
			continue
		}
		ports = append(ports, int(port))
	}
	return ports
}
