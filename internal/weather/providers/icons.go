package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
)

// DefaultIconURL is the base for condition pictograms.
const DefaultIconURL = "https://openweathermap.org/img/wn"

var errEmptyIconCode = errors.New("empty icon code")

// IconProvider downloads condition icons as raw PNG bytes.
type IconProvider struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewIconProvider(client *http.Client, baseURL string) *IconProvider {
	if baseURL == "" {
		baseURL = DefaultIconURL
	}
	return &IconProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("openweather-icons"),
	}
}

// WithBackoff overrides the retry policy.
func (p *IconProvider) WithBackoff(b BackoffConfig) *IconProvider {
	p.httpCfg.Backoff = b
	return p
}

// FetchIcon implements weather.IconFetcher.
func (p *IconProvider) FetchIcon(ctx context.Context, code string) ([]byte, error) {
	if code == "" {
		return nil, errEmptyIconCode
	}

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s/%s@2x.png", p.baseURL, url.PathEscape(code))
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("fetch icon %s: %w", code, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch icon %s: unexpected status %d", code, resp.StatusCode)
	}
	return resp.Body, nil
}
