package vmservice

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
)

// IsUnreachable reports whether err means the endpoint itself is gone:
// connection refused, a timed-out round trip, or a socket that closed
// under us. These are the only conditions that warrant automatic eviction
// of an endpoint. Anything else (malformed response, RPC-level error)
// indicates an integration bug and must propagate to the caller.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, jsonrpc2.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
