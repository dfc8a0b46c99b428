package manager

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"vmlink/internal/reporting"
	"vmlink/internal/vmservice"
)

// MainIsolatesByPattern fans an isolate search out across every live
// endpoint and returns the flattened matches in endpoint iteration order.
// If nothing matches, it waits for a newly started endpoint and queries
// only that one: isolates are assumed not to appear on endpoints that are
// already known. timeout bounds the entire call, the initial sweep
// included; ErrTimeout is returned once it elapses
// (DefaultIsolateWaitTimeout when timeout is zero or negative).
func (m *Manager) MainIsolatesByPattern(ctx context.Context, pattern string, timeout time.Duration) ([]vmservice.IsolateRef, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling isolate pattern: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultIsolateWaitTimeout
	}
	// The timeout bounds the whole call: the initial sweep, every
	// per-endpoint follow-up, and the wait in between.
	ctx, cancel := context.WithDeadline(ctx, time.Now().Add(timeout))
	defer cancel()

	// Subscribe before fanning out so an endpoint that starts while the
	// sweep runs cannot slip between "not found" and "waiting".
	sub := m.bus.SubscribeChannel(reporting.KindFilter(reporting.KindStarted), 16)
	if sub == nil {
		return nil, ErrStopped
	}
	defer m.bus.Unsubscribe(sub)

	var matches []vmservice.IsolateRef
	err = m.invokeAcrossAll(ctx, true, func(cctx context.Context, svc VMService) error {
		refs, err := svc.MainIsolatesByPattern(cctx, re)
		if err != nil {
			return err
		}
		matches = append(matches, refs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return matches, nil
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: no isolate matching %q within %s", ErrTimeout, pattern, timeout)
			}
			return nil, ctx.Err()
		case event, ok := <-sub.Channel:
			if !ok {
				return nil, ErrStopped
			}
			refs, err := m.isolatesOnEndpoint(ctx, event.RemotePort, re)
			if err != nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, fmt.Errorf("%w: no isolate matching %q within %s", ErrTimeout, pattern, timeout)
				}
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if vmservice.IsUnreachable(err) {
					m.evictAll([]int{event.RemotePort}, true)
					continue
				}
				return nil, err
			}
			if len(refs) > 0 {
				return refs, nil
			}
		}
	}
}

// isolatesOnEndpoint queries a single endpoint by remote port. An
// endpoint evicted between the event and the query yields no matches.
func (m *Manager) isolatesOnEndpoint(ctx context.Context, remotePort int, re *regexp.Regexp) ([]vmservice.IsolateRef, error) {
	m.mu.Lock()
	fwd, ok := m.forwarders[remotePort]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var refs []vmservice.IsolateRef
	err := m.invokeOne(ctx, fwd.LocalPort(), func(cctx context.Context, svc VMService) error {
		found, err := svc.MainIsolatesByPattern(cctx, re)
		if err != nil {
			return err
		}
		refs = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// FlutterViews fans a view listing out across every live endpoint and
// returns the flattened results. Zero tracked endpoints yields an empty
// slice, not an error.
func (m *Manager) FlutterViews(ctx context.Context) ([]vmservice.FlutterView, error) {
	views := []vmservice.FlutterView{}
	err := m.invokeAcrossAll(ctx, true, func(cctx context.Context, svc VMService) error {
		found, err := svc.FlutterViews(cctx)
		if err != nil {
			return err
		}
		views = append(views, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}
