package weather

import "context"

// Provider fetches the current-weather document for a location query.
// Returned errors are *ProviderError, *UnexpectedResponseError or
// *TransportError.
type Provider interface {
	Name() string
	FetchCurrent(ctx context.Context, location, apiKey string) (*RawWeatherDocument, error)
}

// IconFetcher downloads the raw PNG for a provider icon code.
type IconFetcher interface {
	FetchIcon(ctx context.Context, code string) ([]byte, error)
}
