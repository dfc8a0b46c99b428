package manager

import "errors"

var (
	// ErrInvalidAddress marks a device address that is not a syntactically
	// valid IPv4 or IPv6 literal. Nothing is constructed when Connect
	// fails with it.
	ErrInvalidAddress = errors.New("invalid device address")

	// ErrTimeout marks a caller-visible deadline that elapsed without a
	// satisfying result. Partially collected results are discarded.
	ErrTimeout = errors.New("timed out")

	// ErrStopped marks an operation attempted against a manager that has
	// already been stopped.
	ErrStopped = errors.New("connection manager is stopped")
)
