package vmservice

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	wsstream "github.com/sourcegraph/jsonrpc2/websocket"

	"vmlink/pkg/logging"
)

// VersionInfo is the response to a getVersion probe.
type VersionInfo struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// IsolateRef identifies one isolate running on an endpoint.
type IsolateRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// FlutterView identifies one Flutter view, with the isolate driving it
// when the view has one assigned.
type FlutterView struct {
	ID      string      `json:"id"`
	Isolate *IsolateRef `json:"isolate,omitempty"`
}

type getVMResult struct {
	Isolates []IsolateRef `json:"isolates"`
}

type listViewsResult struct {
	Views []FlutterView `json:"views"`
}

// Client is a live JSON-RPC session with one VM service endpoint.
type Client struct {
	uri  string
	ws   *websocket.Conn
	conn *jsonrpc2.Conn
}

// Connect dials the VM service websocket at uri and wraps it in a JSON-RPC
// connection. Dial failures are classified by IsUnreachable like any other
// endpoint error.
func Connect(ctx context.Context, uri string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing vm service at %s: %w", uri, err)
	}

	stream := wsstream.NewObjectStream(ws)
	conn := jsonrpc2.NewConn(context.Background(), stream, noopHandler{})

	logging.Debug("VMService", "Connected to %s", uri)
	return &Client{uri: uri, ws: ws, conn: conn}, nil
}

// noopHandler drops server-initiated traffic. The client never subscribes
// to any VM service stream, so everything arriving here is noise.
type noopHandler struct{}

func (noopHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {}

// URI returns the websocket URI this client is connected to.
func (c *Client) URI() string {
	return c.uri
}

// Version issues the lightweight getVersion RPC. It is the liveness probe
// used by the discovery loop.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var v VersionInfo
	if err := c.conn.Call(ctx, "getVersion", nil, &v); err != nil {
		return VersionInfo{}, fmt.Errorf("getVersion against %s: %w", c.uri, err)
	}
	return v, nil
}

// MainIsolatesByPattern lists the endpoint's isolates and returns the main
// isolates whose name matches pattern. Isolates are assumed not to appear
// on an endpoint after its root isolate has started, so callers poll new
// endpoints rather than re-querying known ones.
func (c *Client) MainIsolatesByPattern(ctx context.Context, pattern *regexp.Regexp) ([]IsolateRef, error) {
	var vm getVMResult
	if err := c.conn.Call(ctx, "getVM", nil, &vm); err != nil {
		return nil, fmt.Errorf("getVM against %s: %w", c.uri, err)
	}

	var matches []IsolateRef
	for _, isolate := range vm.Isolates {
		if !isMainIsolate(isolate.Name) {
			continue
		}
		if pattern.MatchString(isolate.Name) {
			matches = append(matches, isolate)
		}
	}
	return matches, nil
}

// FlutterViews lists the Flutter views registered on the endpoint.
func (c *Client) FlutterViews(ctx context.Context) ([]FlutterView, error) {
	var result listViewsResult
	if err := c.conn.Call(ctx, "_flutter.listViews", nil, &result); err != nil {
		return nil, fmt.Errorf("_flutter.listViews against %s: %w", c.uri, err)
	}
	return result.Views, nil
}

// Close tears down the JSON-RPC connection and the underlying websocket.
func (c *Client) Close() error {
	err := c.conn.Close()
	// jsonrpc2 closes the object stream, which closes the websocket; a
	// second close error here is uninteresting.
	_ = c.ws.Close()
	if err != nil && err != jsonrpc2.ErrClosed {
		return err
	}
	return nil
}

// isMainIsolate reports whether an isolate name denotes the root isolate
// of a program, e.g. "foo.dart:main()" or a bare "main".
func isMainIsolate(name string) bool {
	return name == "main" || strings.HasSuffix(name, "main()")
}
