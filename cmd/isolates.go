package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIsolatesCmd() *cobra.Command {
	var flags deviceFlags
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "isolates <address> <pattern>",
		Short: "Find main isolates matching a name pattern on a device",
		Long: `Connects to the device at <address> and searches every live VM service
endpoint for main isolates whose name matches the regular expression
<pattern>. If no endpoint currently has a match, the command waits for a
new endpoint to appear and checks that one, failing once --timeout
elapses.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			initCLILogging(cfg)

			if timeout == 0 {
				timeout = cfg.Discovery.IsolateWaitTimeout.Std()
			}

			mgr, err := connectManager(args[0], cfg)
			if err != nil {
				return err
			}
			defer mgr.Stop()

			isolates, err := mgr.MainIsolatesByPattern(cmd.Context(), args[1], timeout)
			if err != nil {
				return fmt.Errorf("searching isolates: %w", err)
			}
			for _, isolate := range isolates {
				fmt.Printf("%s\t%s\n", isolate.ID, isolate.Name)
			}
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "how long to wait for a matching isolate (default from config, 1m)")
	return cmd
}
