package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"
	"golang.org/x/time/rate"

	appconfig "histflow/config"
	"histflow/logger"
	"histflow/models"
	"histflow/reader"
)

const pageLimit = 1000

// Gateway fetches historical crypto klines from Bybit's v5 market API.
type Gateway struct {
	config   *appconfig.Config
	client   *bybit.Client
	category string
	limiter  *rate.Limiter
	log      *logger.Log
}

// New creates a Bybit gateway using the UTA http client.
func New(cfg *appconfig.Config) *Gateway {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Reader.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Reader.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Reader.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Reader.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}
	httpClient := &http.Client{Transport: transport, Timeout: cfg.Reader.Timeout}

	opts := []bybit.ClientOption{}
	if parsed, err := url.Parse(cfg.Source.Bybit.URL); err == nil && parsed.Host != "" {
		opts = append(opts, bybit.WithBaseURL(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)))
	}

	client := bybit.NewBybitHttpClient("", "", opts...)
	client.HTTPClient = httpClient

	rl := cfg.Reader.RateLimit
	gateway := &Gateway{
		config:   cfg,
		client:   client,
		category: cfg.Source.Bybit.Category,
		limiter:  rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.BurstSize),
		log:      log,
	}

	log.WithComponent("bybit_reader").WithFields(logger.Fields{
		"category": gateway.category,
		"timeout":  cfg.Reader.Timeout,
	}).Info("bybit reader initialized")

	return gateway
}

// Bybit kline intervals; seconds and raw ticks are not served historically.
var intervals = map[models.Resolution]string{
	models.ResolutionMinute: "1",
	models.ResolutionHour:   "60",
	models.ResolutionDaily:  "D",
}

// klineResult mirrors the v5 market/kline result payload. Each list row is
// [startTime, open, high, low, close, volume, turnover].
type klineResult struct {
	Category string     `json:"category"`
	Symbol   string     `json:"symbol"`
	List     [][]string `json:"list"`
}

func (g *Gateway) Fetch(ctx context.Context, req models.FetchRequest) ([]models.Observation, error) {
	interval, ok := intervals[req.Resolution]
	if !ok {
		return nil, fmt.Errorf("%w: bybit serves no historical %s data", reader.ErrUnsupportedRequest, req.Resolution)
	}
	period := req.Resolution.Period()

	log := g.log.WithComponent("bybit_reader").WithFields(logger.Fields{
		"symbol":     req.Instrument.Ticker,
		"resolution": req.Resolution.String(),
	})

	fetchStart := time.Now()
	var observations []models.Observation
	cursor := req.RangeStart.UnixMilli()
	endMs := req.RangeEnd.UnixMilli()

	for cursor < endMs {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", reader.ErrProviderUnavailable, err)
		}

		params := map[string]interface{}{
			"category": g.category,
			"symbol":   req.Instrument.Ticker,
			"interval": interval,
			"start":    cursor,
			"end":      endMs,
			"limit":    pageLimit,
		}

		resp, err := g.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", reader.ErrProviderUnavailable, err)
		}
		if resp.RetCode != 0 {
			if resp.RetCode == 10001 { // parameter error: unknown symbol/interval
				return nil, fmt.Errorf("%w: %s", reader.ErrUnsupportedRequest, resp.RetMsg)
			}
			return nil, fmt.Errorf("%w: ret_code %d: %s", reader.ErrProviderUnavailable, resp.RetCode, resp.RetMsg)
		}

		payload, err := json.Marshal(resp.Result)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", reader.ErrProviderUnavailable, err)
		}
		var result klineResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("%w: malformed kline result: %v", reader.ErrProviderUnavailable, err)
		}
		if len(result.List) == 0 {
			break
		}

		// Bybit returns rows newest first; walk them backwards so the page
		// lands oldest first and track the newest start time for paging.
		pageMax := cursor
		for i := len(result.List) - 1; i >= 0; i-- {
			obs, rowStart, err := rowObservation(result.List[i], period)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", reader.ErrProviderUnavailable, err)
			}
			observations = append(observations, obs)
			if rowStart > pageMax {
				pageMax = rowStart
			}
		}

		next := pageMax + period.Milliseconds()
		if next <= cursor {
			break
		}
		cursor = next
		if len(result.List) < pageLimit {
			break
		}
	}

	logger.LogPerformanceEntry(log, "bybit_reader", "fetch_range", time.Since(fetchStart), logger.Fields{
		"record_count": len(observations),
	})

	if len(observations) == 0 {
		return nil, reader.ErrNoData
	}
	return observations, nil
}

func rowObservation(row []string, period time.Duration) (models.Observation, int64, error) {
	if len(row) < 6 {
		return models.Observation{}, 0, fmt.Errorf("short kline row: %d fields", len(row))
	}

	startMs, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Observation{}, 0, fmt.Errorf("bad kline start %q", row[0])
	}
	values := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return models.Observation{}, 0, fmt.Errorf("bad kline field %q", row[i+1])
		}
		values[i] = v
	}

	closePrice := values[3]
	volume := values[4]
	return models.Observation{
		EndTime:  time.UnixMilli(startMs).UTC().Add(period),
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    closePrice,
		Volume:   volume,
		BidPrice: closePrice,
		AskPrice: closePrice,
		BidSize:  volume,
		AskSize:  volume,
	}, startMs, nil
}
