package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withFakeDirs points the loader at temp user and project directories for
// the duration of one test.
func withFakeDirs(t *testing.T) (userDir, projectDir string) {
	t.Helper()

	userDir = t.TempDir()
	projectDir = t.TempDir()

	origHome := osUserHomeDir
	origWd := osGetwd
	osUserHomeDir = func() (string, error) { return userDir, nil }
	osGetwd = func() (string, error) { return projectDir, nil }
	t.Cleanup(func() {
		osUserHomeDir = origHome
		osGetwd = origWd
	})

	return userDir, projectDir
}

func writeUserConfig(t *testing.T, userDir, content string) {
	t.Helper()
	dir := filepath.Join(userDir, userConfigDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
}

func writeProjectConfig(t *testing.T, projectDir, content string) {
	t.Helper()
	dir := filepath.Join(projectDir, projectConfigDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
}

func TestLoadDefaultsWhenNoFilesExist(t *testing.T) {
	withFakeDirs(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 1500*time.Millisecond, cfg.Discovery.PollInterval.Std())
	assert.Equal(t, 10*time.Second, cfg.Discovery.RPCTimeout.Std())
	assert.Equal(t, time.Minute, cfg.Discovery.IsolateWaitTimeout.Std())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadUserConfigOverlaysDefaults(t *testing.T) {
	userDir, _ := withFakeDirs(t)

	writeUserConfig(t, userDir, `
ssh:
  configPath: /home/dev/.ssh/device_config
discovery:
  pollInterval: 3s
logLevel: debug
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/.ssh/device_config", cfg.SSH.ConfigPath)
	assert.Equal(t, 3*time.Second, cfg.Discovery.PollInterval.Std())
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched fields keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Discovery.RPCTimeout.Std())
}

func TestLoadProjectConfigWinsOverUser(t *testing.T) {
	userDir, projectDir := withFakeDirs(t)

	writeUserConfig(t, userDir, `
ssh:
  interface: eno1
logLevel: debug
`)
	writeProjectConfig(t, projectDir, `
ssh:
  interface: wlan0
discovery:
  rpcTimeout: 2s
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wlan0", cfg.SSH.Interface)
	assert.Equal(t, 2*time.Second, cfg.Discovery.RPCTimeout.Std())
	// User-level settings the project does not override survive.
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsMalformedConfig(t *testing.T) {
	userDir, _ := withFakeDirs(t)

	writeUserConfig(t, userDir, "ssh: [not a mapping\n")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	_, projectDir := withFakeDirs(t)

	writeProjectConfig(t, projectDir, `
discovery:
  pollInterval: soon
`)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", out)
}
