package reader

import (
	"context"
	"errors"

	"histflow/models"
)

// Gateway executes one fetch request against an external data source.
// Implementations own their transport policy (auth, rate limiting, retries);
// the orchestrator only interprets the error taxonomy below.
type Gateway interface {
	Fetch(ctx context.Context, req models.FetchRequest) ([]models.Observation, error)
}

var (
	// ErrProviderUnavailable reports a transport or auth failure: the
	// provider could not be asked. Recorded as a failed outcome.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNoData reports that the provider was asked and had nothing for the
	// requested range. Not an error condition downstream.
	ErrNoData = errors.New("no data for request")

	// ErrUnsupportedRequest reports a symbol or combination the provider
	// recognizes but cannot serve. Recorded as a rejected outcome.
	ErrUnsupportedRequest = errors.New("request not supported by provider")
)

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req models.FetchRequest) ([]models.Observation, error)

func (f GatewayFunc) Fetch(ctx context.Context, req models.FetchRequest) ([]models.Observation, error) {
	return f(ctx, req)
}
