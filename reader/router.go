package reader

import (
	"context"
	"fmt"

	"histflow/models"
)

// Router dispatches fetch requests to the gateway registered for the
// instrument's security type. Construction happens in the wiring layer, so
// the router itself stays free of provider imports.
type Router struct {
	routes   map[models.SecurityType]Gateway
	fallback Gateway
}

// NewRouter creates a Router with an optional fallback used for security
// types without an explicit route.
func NewRouter(fallback Gateway) *Router {
	return &Router{
		routes:   make(map[models.SecurityType]Gateway),
		fallback: fallback,
	}
}

// Register binds a gateway to a security type, replacing any previous route.
func (r *Router) Register(securityType models.SecurityType, gateway Gateway) {
	r.routes[securityType] = gateway
}

func (r *Router) Fetch(ctx context.Context, req models.FetchRequest) ([]models.Observation, error) {
	gateway, ok := r.routes[req.Instrument.SecurityType]
	if !ok {
		gateway = r.fallback
	}
	if gateway == nil {
		return nil, fmt.Errorf("%w: no provider for security type %s", ErrUnsupportedRequest, req.Instrument.SecurityType)
	}
	return gateway.Fetch(ctx, req)
}
