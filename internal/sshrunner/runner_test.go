package sshrunner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmlink/internal/proc"
)

type fakeProc struct {
	argv   []string
	result proc.Result
	err    error
}

func (p *fakeProc) Run(ctx context.Context, argv []string) (proc.Result, error) {
	p.argv = append([]string{}, argv...)
	return p.result, p.err
}

func TestRunBuildsArgv(t *testing.T) {
	tests := []struct {
		name       string
		address    string
		iface      string
		configPath string
		want       []string
	}{
		{
			name:    "ipv4 plain",
			address: "192.168.42.17",
			want:    []string{"ssh", "192.168.42.17", "ls /tmp/dart.services"},
		},
		{
			name:       "config file",
			address:    "192.168.42.17",
			configPath: "/home/dev/.ssh/device_config",
			want:       []string{"ssh", "-F", "/home/dev/.ssh/device_config", "192.168.42.17", "ls /tmp/dart.services"},
		},
		{
			name:    "ipv6 link local with interface",
			address: "fe80::2e0:4cff:fe68:8d1c",
			iface:   "eno1",
			want:    []string{"ssh", "fe80::2e0:4cff:fe68:8d1c%eno1", "ls /tmp/dart.services"},
		},
		{
			name:    "interface ignored for ipv4",
			address: "192.168.42.17",
			iface:   "eno1",
			want:    []string{"ssh", "192.168.42.17", "ls /tmp/dart.services"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &fakeProc{result: proc.Result{ExitCode: 0}}
			runner := New(fp, tt.address, tt.iface, tt.configPath)

			_, err := runner.Run(context.Background(), "ls /tmp/dart.services")
			require.NoError(t, err)
			assert.Equal(t, tt.want, fp.argv)
		})
	}
}

func TestRunSplitsStdoutIntoLines(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   []string
	}{
		{name: "trailing newline stripped", stdout: "31782\n1234\n", want: []string{"31782", "1234"}},
		{name: "no trailing newline", stdout: "31782\n1234", want: []string{"31782", "1234"}},
		{name: "single line", stdout: "31782\n", want: []string{"31782"}},
		{name: "empty output", stdout: "", want: nil},
		{name: "blank interior line kept", stdout: "a\n\nb\n", want: []string{"a", "", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &fakeProc{result: proc.Result{ExitCode: 0, Stdout: tt.stdout}}
			runner := New(fp, "192.168.42.17", "", "")

			lines, err := runner.Run(context.Background(), "ls /tmp/dart.services")
			require.NoError(t, err)
			assert.Equal(t, tt.want, lines)
		})
	}
}

func TestRunRemoteFailureIncludesStderr(t *testing.T) {
	fp := &fakeProc{result: proc.Result{ExitCode: 2, Stderr: "ls: /tmp/dart.services: No such file or directory\n"}}
	runner := New(fp, "192.168.42.17", "", "")

	_, err := runner.Run(context.Background(), "ls /tmp/dart.services")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such file or directory")
	assert.Contains(t, err.Error(), "exited 2")
}

func TestRunInvocationFailurePropagates(t *testing.T) {
	execErr := errors.New("context deadline exceeded")
	fp := &fakeProc{err: execErr}
	runner := New(fp, "192.168.42.17", "", "")

	_, err := runner.Run(context.Background(), "ls /tmp/dart.services")
	assert.ErrorIs(t, err, execErr)
}

func TestTargetHost(t *testing.T) {
	tests := []struct {
		name    string
		address string
		iface   string
		want    string
	}{
		{name: "ipv4 no interface", address: "192.168.42.17", want: "192.168.42.17"},
		{name: "ipv4 interface dropped", address: "192.168.42.17", iface: "eno1", want: "192.168.42.17"},
		{name: "ipv6 with interface", address: "fe80::1", iface: "eno1", want: "fe80::1%eno1"},
		{name: "ipv6 no interface", address: "fe80::1", want: "fe80::1"},
		{name: "hostname passes through", address: "device.local", iface: "eno1", want: "device.local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetHost(tt.address, tt.iface))
		})
	}
}
