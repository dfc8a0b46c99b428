package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/vmlink"
	projectConfigDir = ".vmlink"
	configFileName   = "config.yaml"
)

// Load builds the effective configuration by layering default, user, and
// project settings. Missing files are fine; malformed ones are not.
func Load() (Config, error) {
	cfg := Default()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not determine user config path: %v\n", err)
	} else if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
		userCfg, err := loadFromFile(userConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("loading user config from %s: %w", userConfigPath, err)
		}
		cfg = merge(cfg, userCfg)
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not determine project config path: %v\n", err)
	} else if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
		projectCfg, err := loadFromFile(projectConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("loading project config from %s: %w", projectConfigPath, err)
		}
		cfg = merge(cfg, projectCfg)
	}

	return cfg, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

func loadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// merge overlays non-zero fields of overlay onto base.
func merge(base, overlay Config) Config {
	if overlay.SSH.ConfigPath != "" {
		base.SSH.ConfigPath = overlay.SSH.ConfigPath
	}
	if overlay.SSH.Interface != "" {
		base.SSH.Interface = overlay.SSH.Interface
	}
	if overlay.Discovery.PollInterval != 0 {
		base.Discovery.PollInterval = overlay.Discovery.PollInterval
	}
	if overlay.Discovery.RPCTimeout != 0 {
		base.Discovery.RPCTimeout = overlay.Discovery.RPCTimeout
	}
	if overlay.Discovery.IsolateWaitTimeout != 0 {
		base.Discovery.IsolateWaitTimeout = overlay.Discovery.IsolateWaitTimeout
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	return base
}
