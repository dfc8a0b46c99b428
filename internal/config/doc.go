// Package config defines vmlink's configuration types and the layered
// loader that merges defaults, the user config
// (~/.config/vmlink/config.yaml), and the project config
// (.vmlink/config.yaml) in that order. CLI flags override all of it.
package config
