package manager

import (
	"context"
	"regexp"

	"vmlink/internal/vmservice"
)

// VMService is the slice of the VM service client the manager consumes.
// *vmservice.Client is the production implementation; tests substitute
// fakes through WithVMConnector.
type VMService interface {
	URI() string
	Version(ctx context.Context) (vmservice.VersionInfo, error)
	MainIsolatesByPattern(ctx context.Context, pattern *regexp.Regexp) ([]vmservice.IsolateRef, error)
	FlutterViews(ctx context.Context) ([]vmservice.FlutterView, error)
	Close() error
}

var _ VMService = (*vmservice.Client)(nil)

// VMConnector opens a VM service session against a local websocket URI.
type VMConnector func(ctx context.Context, uri string) (VMService, error)

func defaultConnector(ctx context.Context, uri string) (VMService, error) {
	client, err := vmservice.Connect(ctx, uri)
	if err != nil {
		return nil, err
	}
	return client, nil
}
