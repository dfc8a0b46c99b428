package config

import "time"

// Default returns the built-in configuration every load starts from.
func Default() Config {
	return Config{
		Discovery: DiscoverySettings{
			PollInterval:       Duration(1500 * time.Millisecond),
			RPCTimeout:         Duration(10 * time.Second),
			IsolateWaitTimeout: Duration(time.Minute),
		},
		LogLevel: "info",
	}
}
