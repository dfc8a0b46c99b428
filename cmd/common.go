package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vmlink/internal/config"
	"vmlink/internal/manager"
	"vmlink/pkg/logging"
)

// deviceFlags are the flags shared by every command that talks to a
// device. Flag values override the layered config file settings.
type deviceFlags struct {
	iface     string
	sshConfig string
	logLevel  string
}

func (f *deviceFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.iface, "interface", "i", "", "outgoing interface for IPv6 link-local device addresses")
	cmd.Flags().StringVarP(&f.sshConfig, "ssh-config", "F", "", "ssh_config file used for all ssh invocations")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// resolve layers the config file under the flags and returns the
// effective settings.
func (f *deviceFlags) resolve() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if f.iface != "" {
		cfg.SSH.Interface = f.iface
	}
	if f.sshConfig != "" {
		cfg.SSH.ConfigPath = f.sshConfig
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

// connectManager builds a Manager for address from the resolved config.
// The caller owns the manager and must Stop it.
func connectManager(address string, cfg config.Config) (*manager.Manager, error) {
	mgr, err := manager.Connect(address,
		manager.WithInterface(cfg.SSH.Interface),
		manager.WithSSHConfig(cfg.SSH.ConfigPath),
		manager.WithPollInterval(cfg.Discovery.PollInterval.Std()),
		manager.WithRPCTimeout(cfg.Discovery.RPCTimeout.Std()),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	return mgr, nil
}

// initCLILogging sets up console logging for one-shot commands.
func initCLILogging(cfg config.Config) {
	logging.InitForCLI(logging.ParseLevel(cfg.LogLevel), os.Stderr)
}
