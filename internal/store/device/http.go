package device

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/metal-toolbox/goldencfg/internal/configuration"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// device configurations are text of a few MB at most
const maxConfigBytes = 64 << 20

// HTTPFetcher pulls running configurations from a config source API.
// GET <endpoint>/api/v1/devices/<device>/running-config returns the configuration as text.
type HTTPFetcher struct {
	endpoint *url.URL
	client   *retryablehttp.Client
	maxBytes int64
}

// NewHTTPFetcher returns a fetcher with retries and tracing,
// authenticated with OIDC client credentials unless OAuth is disabled.
func NewHTTPFetcher(ctx context.Context, opts *configuration.FetcherOptions) (*HTTPFetcher, error) {
	endpoint, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, errors.Wrap(model.ErrConfig, "fetcher endpoint URL error: "+err.Error())
	}

	base := &http.Client{
		Timeout:   opts.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.Logger = slog.Default()
	client.HTTPClient = base

	if !opts.DisableOAuth {
		authClient, err := newOAuthClient(ctx, opts, base)
		if err != nil {
			return nil, err
		}

		client.HTTPClient = authClient
	}

	return &HTTPFetcher{
		endpoint: endpoint,
		client:   client,
		maxBytes: maxConfigBytes,
	}, nil
}

func newOAuthClient(ctx context.Context, opts *configuration.FetcherOptions, base *http.Client) (*http.Client, error) {
	ctx = oidc.ClientContext(ctx, base)

	provider, err := oidc.NewProvider(ctx, opts.OidcIssuerEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to discover oidc provider")
	}

	cc := clientcredentials.Config{
		ClientID:       opts.OidcClientID,
		ClientSecret:   opts.OidcClientSecret,
		TokenURL:       provider.Endpoint().TokenURL,
		Scopes:         opts.OidcClientScopes,
		EndpointParams: url.Values{"audience": []string{opts.OidcAudienceEndpoint}},
	}

	// the token source outlives ctx, it must not be bound to a request scoped context
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	authClient := cc.Client(tokenCtx)
	authClient.Timeout = opts.Timeout

	return authClient, nil
}

func (f *HTTPFetcher) url(device model.Device) string {
	return f.endpoint.JoinPath("api", "v1", "devices", device.String(), "running-config").String()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, device model.Device) (model.ConfigText, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, f.url(device), nil)
	if err != nil {
		return nil, errors.Wrap(model.ErrFetchFailure, err.Error())
	}

	req.Header.Set("Accept", "text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(model.ErrFetchFailure, "device %s: %s", device, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(model.ErrFetchFailure, "device %s: config source returned %s", device, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, errors.Wrapf(model.ErrFetchFailure, "device %s: %s", device, err.Error())
	}

	// a truncated configuration must never be evaluated or promoted
	if int64(len(body)) > f.maxBytes {
		return nil, errors.Wrapf(model.ErrFetchFailure, "device %s: configuration exceeds %d bytes", device, f.maxBytes)
	}

	return model.ParseConfigText(string(body)), nil
}
