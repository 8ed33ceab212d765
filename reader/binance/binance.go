package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"

	appconfig "histflow/config"
	"histflow/logger"
	"histflow/models"
	"histflow/reader"
)

// pageLimit is the maximum row count Binance returns per klines or
// aggregated-trades request.
const pageLimit = 1000

// Gateway fetches historical crypto series from Binance: klines for bar
// resolutions and aggregated trades for tick resolution.
type Gateway struct {
	config  *appconfig.Config
	client  *binance.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// New creates a Binance gateway using the go-binance client with a pooled
// transport. An alternative API endpoint can be supplied via configuration.
func New(cfg *appconfig.Config) *Gateway {
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

	client := binance.NewClient("", "")
	client.HTTPClient = httpClient

	if parsed, err := url.Parse(cfg.Source.Binance.URL); err == nil && parsed.Host != "" {
		client.BaseURL = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}

	rl := cfg.Reader.RateLimit
	gateway := &Gateway{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.BurstSize),
		log:     log,
	}

	log.WithComponent("binance_reader").WithFields(logger.Fields{
		"timeout": cfg.Reader.Timeout,
	}).Info("binance reader initialized")

	return gateway
}

var intervals = map[models.Resolution]string{
	models.ResolutionSecond: "1s",
	models.ResolutionMinute: "1m",
	models.ResolutionHour:   "1h",
	models.ResolutionDaily:  "1d",
}

// Fetch pages through the requested range. Tick resolution reads aggregated
// trades; everything else reads klines at the matching interval.
func (g *Gateway) Fetch(ctx context.Context, req models.FetchRequest) ([]models.Observation, error) {
	log := g.log.WithComponent("binance_reader").WithFields(logger.Fields{
		"symbol":     req.Instrument.Ticker,
		"resolution": req.Resolution.String(),
	})

	start := time.Now()
	var observations []models.Observation
	var err error
	if req.Resolution == models.ResolutionTick {
		observations, err = g.fetchAggTrades(ctx, req)
	} else {
		observations, err = g.fetchKlines(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	logger.LogPerformanceEntry(log, "binance_reader", "fetch_range", time.Since(start), logger.Fields{
		"record_count": len(observations),
	})

	if len(observations) == 0 {
		return nil, reader.ErrNoData
	}
	return observations, nil
}

func (g *Gateway) fetchKlines(ctx context.Context, req models.FetchRequest) ([]models.Observation, error) {
	interval, ok := intervals[req.Resolution]
	if !ok {
		return nil, fmt.Errorf("%w: resolution %s", reader.ErrUnsupportedRequest, req.Resolution)
	}
	period := req.Resolution.Period()

	var observations []models.Observation
	cursor := req.RangeStart.UnixMilli()
	endMs := req.RangeEnd.UnixMilli()

	for cursor < endMs {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", reader.ErrProviderUnavailable, err)
		}

		klines, err := g.client.NewKlinesService().
			Symbol(req.Instrument.Ticker).
			Interval(interval).
			StartTime(cursor).
			EndTime(endMs).
			Limit(pageLimit).
			Do(ctx)
		if err != nil {
			return nil, classify(err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			obs, err := klineObservation(k, period)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", reader.ErrProviderUnavailable, err)
			}
			observations = append(observations, obs)
		}

		next := klines[len(klines)-1].CloseTime + 1
		if next <= cursor {
			break
		}
		cursor = next
		if len(klines) < pageLimit {
			break
		}
	}

	return observations, nil
}

func (g *Gateway) fetchAggTrades(ctx context.Context, req models.FetchRequest) ([]models.Observation, error) {
	var observations []models.Observation
	cursor := req.RangeStart.UnixMilli()
	endMs := req.RangeEnd.UnixMilli()

	for cursor < endMs {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", reader.ErrProviderUnavailable, err)
		}

		trades, err := g.client.NewAggTradesService().
			Symbol(req.Instrument.Ticker).
			StartTime(cursor).
			EndTime(endMs).
			Limit(pageLimit).
			Do(ctx)
		if err != nil {
			return nil, classify(err)
		}
		if len(trades) == 0 {
			break
		}

		for _, t := range trades {
			price, err := strconv.ParseFloat(t.Price, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad trade price %q", reader.ErrProviderUnavailable, t.Price)
			}
			quantity, err := strconv.ParseFloat(t.Quantity, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad trade quantity %q", reader.ErrProviderUnavailable, t.Quantity)
			}
			observations = append(observations, models.Observation{
				EndTime: time.UnixMilli(t.Timestamp).UTC(),
				Close:   price,
				Volume:  quantity,
				// Klines and trades carry no spread; quote series mirror the
				// traded price on both sides.
				BidPrice: price,
				AskPrice: price,
				BidSize:  quantity,
				AskSize:  quantity,
			})
		}

		next := trades[len(trades)-1].Timestamp + 1
		if next <= cursor {
			break
		}
		cursor = next
		if len(trades) < pageLimit {
			break
		}
	}

	return observations, nil
}

func klineObservation(k *binance.Kline, period time.Duration) (models.Observation, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return models.Observation{}, fmt.Errorf("bad open %q", k.Open)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return models.Observation{}, fmt.Errorf("bad high %q", k.High)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return models.Observation{}, fmt.Errorf("bad low %q", k.Low)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return models.Observation{}, fmt.Errorf("bad close %q", k.Close)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return models.Observation{}, fmt.Errorf("bad volume %q", k.Volume)
	}

	return models.Observation{
		EndTime:  time.UnixMilli(k.OpenTime).UTC().Add(period),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		BidPrice: closePrice,
		AskPrice: closePrice,
		BidSize:  volume,
		AskSize:  volume,
	}, nil
}

// classify maps go-binance client errors onto the gateway taxonomy. An
// invalid-symbol rejection (-1121) means the request itself cannot be
// served; everything else is treated as a transport fault.
func classify(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == -1121 {
		return fmt.Errorf("%w: %s", reader.ErrUnsupportedRequest, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", reader.ErrProviderUnavailable, err)
}
