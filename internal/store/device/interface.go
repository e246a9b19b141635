package device

import (
	"context"

	"github.com/metal-toolbox/goldencfg/internal/configuration"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
)

// Fetcher obtains the running configuration of a device. Connection handling,
// credentials and connect retries belong to the implementation.
type Fetcher interface {
	Fetch(ctx context.Context, device model.Device) (model.ConfigText, error)
}

// NewFetcher returns the Fetcher configured in opts.
func NewFetcher(ctx context.Context, opts *configuration.FetcherOptions) (Fetcher, error) {
	if opts == nil {
		return nil, errors.Wrap(model.ErrConfig, "no fetcher options")
	}

	switch opts.Kind {
	case configuration.FetcherKindFile, "":
		return NewFileFetcher(opts.Dir), nil
	case configuration.FetcherKindHTTP:
		return NewHTTPFetcher(ctx, opts)
	default:
		return nil, errors.Wrap(model.ErrConfig, "unknown fetcher kind: "+opts.Kind)
	}
}
