package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"vmlink/internal/config"
	"vmlink/internal/reporting"
	"vmlink/internal/tui"
	"vmlink/pkg/logging"
)

func newConnectCmd() *cobra.Command {
	var flags deviceFlags
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "connect <address>",
		Short: "Connect to a device and monitor its VM service endpoints",
		Long: `Connects to the device at <address> (an IPv4 or IPv6 literal reachable
over SSH), forwards every discovered VM service port to a local ephemeral
port, and keeps the topology fresh with a background discovery loop.

It can run in two modes:

1. Interactive TUI mode (default):
   - Shows a live table of forwarded endpoints with their local ports and
     websocket URIs, plus a log tail.
   - 'c' copies the selected endpoint URI to the clipboard, 'q' quits and
     releases every tunnel.

2. Non-TUI / CLI mode (using --no-tui):
   - Prints endpoint lifecycle events to the console as they happen.
   - Runs until interrupted (Ctrl+C), then releases every tunnel.

Arguments:
  <address>: (Required) The device address, e.g. "192.168.42.17" or
             "fe80::2e0:4cff:fe68:8d1c" (use --interface for link-local).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			if noTUI {
				return runConnectConsole(args[0], cfg)
			}
			return runConnectTUI(args[0], cfg)
		},
	}

	flags.bind(cmd)
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "print lifecycle events to the console instead of the TUI")
	return cmd
}

func runConnectTUI(address string, cfg config.Config) error {
	logCh := logging.InitForTUI(logging.ParseLevel(cfg.LogLevel))
	defer logging.CloseTUIChannel()

	mgr, err := connectManager(address, cfg)
	if err != nil {
		return err
	}
	defer mgr.Stop()

	sub := mgr.Events().SubscribeChannel(nil, 64)
	defer mgr.Events().Unsubscribe(sub)

	model := tui.NewModel(mgr, sub, logCh)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running endpoint monitor: %w", err)
	}
	return nil
}

func runConnectConsole(address string, cfg config.Config) error {
	initCLILogging(cfg)

	mgr, err := connectManager(address, cfg)
	if err != nil {
		return err
	}
	defer mgr.Stop()

	for _, ep := range mgr.Endpoints() {
		fmt.Printf("endpoint: remote port %d -> %s\n", ep.RemotePort, ep.URI)
	}

	sub := mgr.Events().SubscribeChannel(nil, 64)
	defer mgr.Events().Unsubscribe(sub)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Println("watching for endpoint changes; press Ctrl+C to stop")
	for {
		select {
		case <-sigCh:
			return nil
		case event, ok := <-sub.Channel:
			if !ok {
				return nil
			}
			printEvent(event)
		}
	}
}

func printEvent(event reporting.LifecycleEvent) {
	switch event.Kind {
	case reporting.KindStarted:
		fmt.Printf("started: remote port %d -> %s\n", event.RemotePort, event.URI)
	case reporting.KindStopped:
		fmt.Printf("stopped: remote port %d\n", event.RemotePort)
	}
}
