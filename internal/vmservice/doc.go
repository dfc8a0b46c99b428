// Package vmservice is the JSON-RPC client for one VM service endpoint.
//
// Every forwarded local port gets at most one Client, connected lazily on
// first use and kept for the lifetime of the forward. The wire protocol is
// JSON-RPC 2.0 over a websocket at ws://<loopback>:<port>/ws; the client
// only implements the handful of methods the connection manager needs
// (version probe, isolate listing, view listing) and deliberately ignores
// stream notifications.
//
// Error classification lives here too: IsUnreachable decides whether an
// RPC failure means "the endpoint is gone" (connection refused, timed out,
// socket closed) or a genuine protocol problem that must propagate.
package vmservice
