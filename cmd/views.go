package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newViewsCmd() *cobra.Command {
	var flags deviceFlags

	cmd := &cobra.Command{
		Use:   "views <address>",
		Short: "List Flutter views across all endpoints on a device",
		Long: `Connects to the device at <address>, queries every live VM service
endpoint for its Flutter views, prints the flattened list, and disconnects.
A device with no endpoints prints nothing and exits successfully.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			initCLILogging(cfg)

			mgr, err := connectManager(args[0], cfg)
			if err != nil {
				return err
			}
			defer mgr.Stop()

			views, err := mgr.FlutterViews(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing views: %w", err)
			}
			for _, view := range views {
				if view.Isolate != nil {
					fmt.Printf("%s\t%s\n", view.ID, view.Isolate.Name)
				} else {
					fmt.Printf("%s\t(no isolate)\n", view.ID)
				}
			}
			return nil
		},
	}

	flags.bind(cmd)
	return cmd
}
