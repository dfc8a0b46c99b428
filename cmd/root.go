package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vmlink",
	Short: "Manage debugging connections to VM services on a remote device",
	Long: `vmlink establishes and maintains live connections from this host to the
VM service endpoints of a target device reachable only over SSH. It
discovers service ports on the device, keeps an SSH tunnel per endpoint,
and multiplexes queries (isolate search, view listing) across all of them.`,
	// SilenceUsage prevents printing usage on errors we handle ourselves
	// (invalid addresses, timeouts, failed connections).
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "vmlink version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newViewsCmd())
	rootCmd.AddCommand(newIsolatesCmd())
	rootCmd.AddCommand(newPortsCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
