package downloader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	appconfig "histflow/config"
	"histflow/logger"
	"histflow/models"
	"histflow/planner"
	"histflow/processor"
	"histflow/reader"
	"histflow/writer"
)

// Downloader runs one batch download: it resolves every ticker against the
// shared run parameters, fetches, orders and persists each instrument's
// series, and records one outcome per instrument. A single instrument's
// failure never aborts the others.
type Downloader struct {
	config  *appconfig.Config
	params  appconfig.DownloadParams
	gateway reader.Gateway
	store   writer.Store
	log     *logger.Log

	mu       sync.Mutex
	outcomes []models.Outcome
}

// New creates a Downloader over an already-wired gateway and store.
func New(cfg *appconfig.Config, params appconfig.DownloadParams, gateway reader.Gateway, store writer.Store) *Downloader {
	return &Downloader{
		config:  cfg,
		params:  params,
		gateway: gateway,
		store:   store,
		log:     logger.GetLogger(),
	}
}

// Run processes every ticker of the batch and returns the per-instrument
// outcomes in input order. The only error returns are fatal preflight
// conditions: an unsupported resolution/security-type combination, an empty
// ticker list, or a context already cancelled. Blank ticker entries are
// dropped silently before processing starts.
func (d *Downloader) Run(ctx context.Context) ([]models.Outcome, error) {
	log := d.log.WithComponent("downloader")

	tickers := make([]string, 0, len(d.params.Tickers))
	for _, ticker := range d.params.Tickers {
		if strings.TrimSpace(ticker) == "" {
			continue
		}
		tickers = append(tickers, ticker)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers to download", appconfig.ErrInvalidConfiguration)
	}

	// A zero range end is pinned once here so every instrument in the run
	// shares the same effective window.
	if d.params.End.IsZero() {
		d.params.End = time.Now().UTC()
	}

	// Preflight: the run parameters are shared by every instrument, so a
	// combination the planner rejects is fatal before any fetch happens.
	probe := planner.Resolve(tickers[0], d.params.SecurityType, d.params.Market)
	if _, err := planner.Plan(probe, d.params.Resolution, d.params.Start, d.params.End); err != nil {
		return nil, err
	}

	workers := d.params.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tickers) {
		workers = len(tickers)
	}

	log.WithFields(logger.Fields{
		"tickers":       len(tickers),
		"security_type": d.params.SecurityType.String(),
		"resolution":    d.params.Resolution.String(),
		"workers":       workers,
	}).Info("starting download run")

	start := time.Now()
	d.outcomes = make([]models.Outcome, len(tickers))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcome := d.processTicker(ctx, tickers[idx])
				d.mu.Lock()
				d.outcomes[idx] = outcome
				d.mu.Unlock()
			}
		}()
	}

	for idx := range tickers {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	summary := Summarize(d.outcomes)
	logger.LogPerformanceEntry(log, "downloader", "download_run", time.Since(start), logger.Fields{
		"written":  summary.Written,
		"no_data":  summary.NoData,
		"rejected": summary.Rejected,
		"failed":   summary.Failed,
	})
	log.Info("download run finished")

	return d.outcomes, nil
}

// processTicker walks one instrument through resolve, plan, fetch, sequence
// and write, and maps every error to a terminal outcome status.
func (d *Downloader) processTicker(ctx context.Context, ticker string) models.Outcome {
	instrument := planner.Resolve(ticker, d.params.SecurityType, d.params.Market)

	log := d.log.WithComponent("downloader").WithFields(logger.Fields{
		"ticker":        instrument.Ticker,
		"security_type": instrument.SecurityType.String(),
		"market":        instrument.Market,
	})

	request, err := planner.Plan(instrument, d.params.Resolution, d.params.Start, d.params.End)
	if err != nil {
		log.WithError(err).Error("plan failed")
		return outcome(instrument, models.StatusFailed, err)
	}

	// Cancellation is checked before every fetch so a stopped run does not
	// keep issuing provider requests.
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("run cancelled before fetch")
		return outcome(instrument, models.StatusFailed, err)
	}

	observations, err := d.gateway.Fetch(ctx, request)
	if err != nil {
		switch {
		case errors.Is(err, reader.ErrNoData):
			log.Info("no data in requested range")
			return outcome(instrument, models.StatusNoData, err)
		case errors.Is(err, reader.ErrUnsupportedRequest):
			log.WithError(err).Warn("provider rejected request")
			return outcome(instrument, models.StatusRejected, err)
		default:
			log.WithError(err).Error("fetch failed")
			return outcome(instrument, models.StatusFailed, err)
		}
	}

	batch, err := processor.Sequence(instrument, request.Resolution, request.TickType, observations)
	if err != nil {
		if errors.Is(err, processor.ErrEmptyResult) {
			log.Info("provider returned empty series")
			return outcome(instrument, models.StatusNoData, err)
		}
		log.WithError(err).Error("sequencing failed")
		return outcome(instrument, models.StatusFailed, err)
	}

	if err := d.store.Write(ctx, batch); err != nil {
		log.WithError(err).Error("write failed")
		return outcome(instrument, models.StatusFailed, err)
	}

	logger.LogDataFlowEntry(log, "gateway", "store", batch.RecordCount, instrument.Key())
	log.WithFields(logger.Fields{"record_count": batch.RecordCount}).Info("instrument written")
	return models.Outcome{Instrument: instrument, Status: models.StatusWritten}
}

func outcome(instrument models.Instrument, status models.Status, err error) models.Outcome {
	o := models.Outcome{Instrument: instrument, Status: status}
	if err != nil {
		o.Detail = err.Error()
	}
	return o
}
