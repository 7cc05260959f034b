package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/i474232898/weather-panel/internal/weather"
	"github.com/sony/gobreaker"
)

// DefaultOpenWeatherURL is the current-weather endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, baseURL string) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("openweather"),
	}
}

// WithBackoff overrides the retry policy.
func (p *OpenWeatherProvider) WithBackoff(b BackoffConfig) *OpenWeatherProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// FetchCurrent requests the raw document. Temperatures come back in Kelvin
// because no units parameter is sent.
func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, location, apiKey string) (*weather.RawWeatherDocument, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openweather api key is not configured", weather.ErrInvalidConfig)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", location)
		values.Set("appid", apiKey)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, classifyFailure(se.resp)
		}
		return nil, &weather.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyFailure(resp)
	}

	doc, err := weather.DecodeDocument(resp.Body)
	if err != nil {
		return nil, &weather.UnexpectedResponseError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if doc.Cod != http.StatusOK {
		msg := doc.Message
		if msg == "" {
			msg = fmt.Sprintf("unexpected cod %d", doc.Cod)
		}
		return nil, &weather.UnexpectedResponseError{StatusCode: int(doc.Cod), Message: msg}
	}
	return doc, nil
}

// errorEnvelope is the body OpenWeatherMap sends with 4xx answers.
type errorEnvelope struct {
	Cod     weather.Code `json:"cod"`
	Message string       `json:"message"`
}

// classifyFailure turns a non-2xx answer into a ProviderError when it carries
// a structured body and an UnexpectedResponseError otherwise.
func classifyFailure(resp upstreamResponse) error {
	var env errorEnvelope
	if err := json.Unmarshal(resp.Body, &env); err == nil && env.Message != "" {
		return &weather.ProviderError{
			StatusCode: resp.StatusCode,
			Code:       int(env.Cod),
			Message:    env.Message,
		}
	}
	msg := resp.Status
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &weather.UnexpectedResponseError{StatusCode: resp.StatusCode, Message: msg}
}
