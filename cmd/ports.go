package cmd

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"vmlink/internal/manager"
	"vmlink/internal/proc"
	"vmlink/internal/sshrunner"
)

func newPortsCmd() *cobra.Command {
	var flags deviceFlags

	cmd := &cobra.Command{
		Use:   "ports <address>",
		Short: "List open VM service ports on a device",
		Long: `Runs service-port discovery against the device at <address> and prints
the parsed port list, one per line. No tunnels are established. The
discovery protocol is a directory listing on the device and is explicitly
provisional; an empty result is not an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			initCLILogging(cfg)

			address := args[0]
			if net.ParseIP(address) == nil {
				return fmt.Errorf("%w: %q is not an IPv4 or IPv6 literal", manager.ErrInvalidAddress, address)
			}

			runner := sshrunner.New(proc.NewExecRunner(), address, cfg.SSH.Interface, cfg.SSH.ConfigPath)
			ports, err := manager.DiscoverServicePorts(cmd.Context(), runner)
			if err != nil {
				return err
			}
			for _, port := range ports {
				fmt.Println(port)
			}
			return nil
		},
	}

	flags.bind(cmd)
	return cmd
}
