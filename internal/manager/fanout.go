package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"vmlink/internal/portforwarding"
	"vmlink/internal/reporting"
	"vmlink/internal/vmservice"
	"vmlink/pkg/logging"
)

// invokeAcrossAll runs fn against every tracked endpoint in ascending
// remote-port order. Endpoints failing with an unreachable condition are
// collected and evicted in one batch after the sweep; emit controls
// whether their stopped events are published (the bootstrap pass stays
// silent so the stream carries no pre-subscription history). If the
// caller's ctx expires mid-sweep the sweep aborts with ErrTimeout and no
// endpoint is evicted. Any other error aborts the sweep and propagates.
func (m *Manager) invokeAcrossAll(ctx context.Context, emit bool, fn func(context.Context, VMService) error) error {
	type target struct {
		remotePort int
		localPort  int
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	targets := make([]target, 0, len(m.forwarders))
	for remotePort, fwd := range m.forwarders {
		targets = append(targets, target{remotePort: remotePort, localPort: fwd.LocalPort()})
	}
	m.mu.Unlock()

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].remotePort < targets[j].remotePort
	})

	var dead []int
	for _, t := range targets {
		err := m.invokeOne(ctx, t.localPort, fn)
		if err == nil {
			continue
		}
		// The caller's deadline or cancellation is not an endpoint fault:
		// surface it, discard partial results, and leave every endpoint
		// tracked. Only a failure with the caller's ctx still live can mean
		// the endpoint itself is gone.
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return fmt.Errorf("%w: fan-out deadline exceeded on remote port %d", ErrTimeout, t.remotePort)
			}
			return ctxErr
		}
		if vmservice.IsUnreachable(err) {
			logging.Warn(subsystem, "Endpoint on remote port %d unreachable, evicting: %v", t.remotePort, err)
			dead = append(dead, t.remotePort)
			continue
		}
		return err
	}

	m.evictAll(dead, emit)
	return nil
}

// invokeOne runs fn against the endpoint behind localPort with the RPC
// deadline applied around both the lazy connect and the call itself.
func (m *Manager) invokeOne(ctx context.Context, localPort int, fn func(context.Context, VMService) error) error {
	cctx, cancel := context.WithTimeout(ctx, m.rpcTimeout)
	defer cancel()

	svc, err := m.getOrConnect(cctx, localPort)
	if err != nil {
		return err
	}
	return fn(cctx, svc)
}

// getOrConnect returns the cached VM service client for localPort,
// connecting and caching one on first use.
func (m *Manager) getOrConnect(ctx context.Context, localPort int) (VMService, error) {
	m.mu.Lock()
	if svc, ok := m.clients[localPort]; ok {
		m.mu.Unlock()
		return svc, nil
	}
	m.mu.Unlock()

	svc, err := m.connect(ctx, m.loopbackURI(localPort))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = svc.Close()
		return nil, ErrStopped
	}
	if existing, ok := m.clients[localPort]; ok {
		// Lost a connect race; keep the first session.
		m.mu.Unlock()
		_ = svc.Close()
		return existing, nil
	}
	m.clients[localPort] = svc
	m.mu.Unlock()
	return svc, nil
}

// evictAll removes the given remote ports from the endpoint map in one
// batch, marks them stale, releases their clients and forwarders, and
// publishes a stopped event per port (in detection order) when emit is
// set.
func (m *Manager) evictAll(remotePorts []int, emit bool) {
	if len(remotePorts) == 0 {
		return
	}

	type victim struct {
		remotePort int
		fwd        portforwarding.Forwarder
		svc        VMService
	}

	m.mu.Lock()
	victims := make([]victim, 0, len(remotePorts))
	for _, remotePort := range remotePorts {
		fwd, ok := m.forwarders[remotePort]
		if !ok {
			continue
		}
		delete(m.forwarders, remotePort)
		m.stale[remotePort] = struct{}{}

		v := victim{remotePort: remotePort, fwd: fwd}
		if svc, ok := m.clients[fwd.LocalPort()]; ok {
			v.svc = svc
			delete(m.clients, fwd.LocalPort())
		}
		victims = append(victims, v)
	}
	m.mu.Unlock()

	for _, v := range victims {
		uri := m.loopbackURI(v.fwd.LocalPort())
		if v.svc != nil {
			_ = v.svc.Close()
		}
		if err := v.fwd.Stop(); err != nil {
			logging.Warn(subsystem, "Stopping forwarder for evicted remote port %d: %v", v.remotePort, err)
		}
		logging.Info(subsystem, "Evicted endpoint on remote port %d", v.remotePort)
		if emit {
			m.bus.Publish(reporting.NewLifecycleEvent(reporting.KindStopped, v.remotePort, uri))
		}
	}
}
