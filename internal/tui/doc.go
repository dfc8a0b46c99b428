// Package tui implements the interactive endpoint monitor behind
// `vmlink connect`: a live table of forwarded endpoints fed by the
// manager's lifecycle event stream, with a log tail underneath.
package tui
