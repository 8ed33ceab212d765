package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"

	appconfig "histflow/config"
	"histflow/logger"
	"histflow/models"
)

// RestGateway fetches historical bars from a generic JSON-over-HTTP source.
// It serves the security types that have no exchange SDK in this codebase
// (equity, option, future, forex, cfd) against a configurable endpoint.
type RestGateway struct {
	config  *appconfig.Config
	client  *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
	log     *logger.Log
}

type restBarsResponse struct {
	Bars []models.Observation `json:"bars"`
}

// NewRestGateway creates a RestGateway with a pooled transport and a
// client-side rate limit, matching the reader configuration.
func NewRestGateway(cfg *appconfig.Config) *RestGateway {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Reader.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Reader.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Reader.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Reader.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Reader.Timeout,
	}

	rl := cfg.Reader.RateLimit
	gateway := &RestGateway{
		config:  cfg,
		client:  httpClient,
		baseURL: cfg.Source.Rest.URL,
		token:   cfg.Source.Rest.AuthToken,
		limiter: rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.BurstSize),
		log:     log,
	}

	log.WithComponent("rest_reader").WithFields(logger.Fields{
		"base_url": cfg.Source.Rest.URL,
	}).Info("rest reader initialized")

	return gateway
}

// Fetch retrieves observations for one request. Transient failures are
// retried with exponential backoff up to the configured attempt budget;
// whatever survives the retries maps onto the gateway error taxonomy.
func (g *RestGateway) Fetch(ctx context.Context, req models.FetchRequest) ([]models.Observation, error) {
	if g.baseURL == "" {
		return nil, fmt.Errorf("%w: no rest source configured for %s", ErrUnsupportedRequest, req.Instrument.SecurityType)
	}

	log := g.log.WithComponent("rest_reader").WithFields(logger.Fields{
		"ticker":     req.Instrument.Ticker,
		"resolution": req.Resolution.String(),
		"tick_type":  req.TickType.String(),
	})

	retry := g.config.Reader.Retry
	boff := &backoff.Backoff{
		Min:    retry.BaseDelay,
		Max:    retry.MaxDelay,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}

		start := time.Now()
		observations, retriable, err := g.fetchOnce(ctx, req)
		duration := time.Since(start)

		if err == nil {
			logger.LogPerformanceEntry(log, "rest_reader", "api_request", duration, logger.Fields{
				"attempt":      attempt,
				"record_count": len(observations),
			})
			if len(observations) == 0 {
				return nil, ErrNoData
			}
			return observations, nil
		}

		lastErr = err
		if !retriable || attempt == retry.MaxAttempts {
			break
		}

		delay := boff.Duration()
		log.WithError(err).WithFields(logger.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("fetch attempt failed, retrying")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// fetchOnce performs a single HTTP round trip. The bool result reports
// whether the failure is worth retrying.
func (g *RestGateway) fetchOnce(ctx context.Context, req models.FetchRequest) ([]models.Observation, bool, error) {
	query := url.Values{}
	query.Set("ticker", req.Instrument.Ticker)
	query.Set("security_type", req.Instrument.SecurityType.String())
	query.Set("market", req.Instrument.Market)
	query.Set("resolution", req.Resolution.String())
	query.Set("tick_type", req.TickType.String())
	query.Set("start", req.RangeStart.Format(time.RFC3339))
	query.Set("end", req.RangeEnd.Format(time.RFC3339))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if g.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil // provider has nothing for this instrument
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedRequest, req.Instrument.Ticker)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	var parsed restBarsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, fmt.Errorf("%w: malformed response: %v", ErrProviderUnavailable, err)
	}

	return parsed.Bars, false, nil
}
