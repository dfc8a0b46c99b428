package portforwarding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmlink/internal/proc"
)

// fakeProc records every argv and replays scripted results in order.
type fakeProc struct {
	mu      sync.Mutex
	calls   [][]string
	results []proc.Result
	errs    []error
}

func (p *fakeProc) Run(ctx context.Context, argv []string) (proc.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]string{}, argv...))
	idx := len(p.calls) - 1
	var result proc.Result
	if idx < len(p.results) {
		result = p.results[idx]
	}
	var err error
	if idx < len(p.errs) {
		err = p.errs[idx]
	}
	return result, err
}

func (p *fakeProc) call(i int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= len(p.calls) {
		return nil
	}
	return p.calls[i]
}

func (p *fakeProc) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func TestStartBuildsForwardArgs(t *testing.T) {
	fp := &fakeProc{results: []proc.Result{{ExitCode: 0}}}
	factory := NewSSHFactory(fp, "192.168.42.17", "", "")

	fwd, err := factory.Start(context.Background(), 8181)
	require.NoError(t, err)
	require.NotZero(t, fwd.LocalPort())
	assert.Equal(t, 8181, fwd.RemotePort())

	spec := fmt.Sprintf("%d:127.0.0.1:8181", fwd.LocalPort())
	assert.Equal(t, []string{
		"ssh", "-nNT", "-f", "-o", "ExitOnForwardFailure=yes",
		"-L", spec, "192.168.42.17",
	}, fp.call(0))
}

func TestStartIPv6AddsFamilyFlagAndScope(t *testing.T) {
	fp := &fakeProc{results: []proc.Result{{ExitCode: 0}}}
	factory := NewSSHFactory(fp, "fe80::2e0:4cff:fe68:8d1c", "eno1", "/tmp/sshconfig")

	fwd, err := factory.Start(context.Background(), 8181)
	require.NoError(t, err)

	spec := fmt.Sprintf("%d:[::1]:8181", fwd.LocalPort())
	assert.Equal(t, []string{
		"ssh", "-F", "/tmp/sshconfig", "-6",
		"-nNT", "-f", "-o", "ExitOnForwardFailure=yes",
		"-L", spec, "fe80::2e0:4cff:fe68:8d1c%eno1",
	}, fp.call(0))
}

func TestStartRefusedForwardIsUnavailable(t *testing.T) {
	fp := &fakeProc{results: []proc.Result{{ExitCode: 255, Stderr: "bind: address already in use"}}}
	factory := NewSSHFactory(fp, "192.168.42.17", "", "")

	fwd, err := factory.Start(context.Background(), 8181)
	assert.Nil(t, fwd)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStartExecFailurePropagates(t *testing.T) {
	execErr := errors.New("exec: \"ssh\": executable file not found in $PATH")
	fp := &fakeProc{errs: []error{execErr}}
	factory := NewSSHFactory(fp, "192.168.42.17", "", "")

	_, err := factory.Start(context.Background(), 8181)
	assert.ErrorIs(t, err, execErr)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestStopCancelsWithMatchingSpec(t *testing.T) {
	fp := &fakeProc{results: []proc.Result{{ExitCode: 0}, {ExitCode: 0}}}
	factory := NewSSHFactory(fp, "192.168.42.17", "", "")

	fwd, err := factory.Start(context.Background(), 8181)
	require.NoError(t, err)
	require.NoError(t, fwd.Stop())

	spec := fmt.Sprintf("%d:127.0.0.1:8181", fwd.LocalPort())
	assert.Equal(t, []string{
		"ssh", "-O", "cancel", "-L", spec, "192.168.42.17",
	}, fp.call(1))
}

func TestStopIsIdempotent(t *testing.T) {
	fp := &fakeProc{results: []proc.Result{{ExitCode: 0}, {ExitCode: 0}}}
	factory := NewSSHFactory(fp, "192.168.42.17", "", "")

	fwd, err := factory.Start(context.Background(), 8181)
	require.NoError(t, err)

	require.NoError(t, fwd.Stop())
	require.NoError(t, fwd.Stop())
	require.NoError(t, fwd.Stop())

	// One start invocation, one cancel invocation, nothing more.
	assert.Equal(t, 2, fp.callCount())
}

func TestStopSwallowsCancelFailure(t *testing.T) {
	fp := &fakeProc{
		results: []proc.Result{{ExitCode: 0}, {ExitCode: 255, Stderr: "no such forwarding"}},
	}
	factory := NewSSHFactory(fp, "192.168.42.17", "", "")

	fwd, err := factory.Start(context.Background(), 8181)
	require.NoError(t, err)

	// A cancel refused by the client must not surface to the caller.
	assert.NoError(t, fwd.Stop())
}

func TestStartPicksDistinctLocalPorts(t *testing.T) {
	fp := &fakeProc{results: []proc.Result{{ExitCode: 0}, {ExitCode: 0}}}
	factory := NewSSHFactory(fp, "192.168.42.17", "", "")

	first, err := factory.Start(context.Background(), 8181)
	require.NoError(t, err)
	second, err := factory.Start(context.Background(), 8282)
	require.NoError(t, err)

	assert.NotEqual(t, first.LocalPort(), second.LocalPort())
	for _, fwd := range []Forwarder{first, second} {
		assert.Greater(t, fwd.LocalPort(), 0)
		assert.LessOrEqual(t, fwd.LocalPort(), 65535)
	}
}
