package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"histflow/config"
	"histflow/downloader"
	"histflow/logger"
	"histflow/models"
	"histflow/reader"
	"histflow/reader/binance"
	"histflow/reader/bybit"
	"histflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	tickers := flag.String("tickers", "", "Comma-separated tickers (overrides config)")
	securityType := flag.String("security-type", "", "Security type (overrides config)")
	resolution := flag.String("resolution", "", "Resolution (overrides config)")
	market := flag.String("market", "", "Market (overrides config)")
	start := flag.String("start", "", "Range start, yyyymmdd (overrides config)")
	end := flag.String("end", "", "Range end, yyyymmdd (overrides config)")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	applyOverrides(cfg, *tickers, *securityType, *resolution, *market, *start, *end)

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Histflow.Name,
		"version": cfg.Histflow.Version,
	}).Info("starting histflow")

	params, err := cfg.DownloadParams()
	if err != nil {
		log.WithError(err).Error("invalid download parameters")
		os.Exit(1)
	}

	gateway, err := buildGateway(cfg)
	if err != nil {
		log.WithError(err).Error("failed to build data gateway")
		os.Exit(1)
	}

	store, err := buildStore(cfg)
	if err != nil {
		log.WithError(err).Error("failed to build store")
		os.Exit(1)
	}

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	outcomes, err := downloader.New(cfg, params, gateway, store).Run(ctx)
	if err != nil {
		log.WithError(err).Error("download run aborted")
		os.Exit(1)
	}

	fmt.Print(downloader.Report(outcomes))

	summary := downloader.Summarize(outcomes)
	if cfg.Metrics.CloudWatch.Enabled {
		logger.PublishRunMetrics(context.Background(), summary.Counts(), logger.Fields{
			"SecurityType": params.SecurityType.String(),
			"Resolution":   params.Resolution.String(),
		})
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
	log.Info("histflow finished")
}

func applyOverrides(cfg *config.Config, tickers, securityType, resolution, market, start, end string) {
	if tickers != "" {
		cfg.Download.Tickers = strings.Split(tickers, ",")
	}
	if securityType != "" {
		cfg.Download.SecurityType = securityType
	}
	if resolution != "" {
		cfg.Download.Resolution = resolution
	}
	if market != "" {
		cfg.Download.Market = market
	}
	if start != "" {
		cfg.Download.Start = start
	}
	if end != "" {
		cfg.Download.End = end
	}
}

// buildGateway wires the per-security-type routing: crypto goes to the
// configured exchange provider, everything else to the generic REST source.
func buildGateway(cfg *config.Config) (reader.Gateway, error) {
	router := reader.NewRouter(reader.NewRestGateway(cfg))

	switch strings.ToLower(cfg.Source.CryptoProvider) {
	case "binance":
		router.Register(models.SecurityCrypto, binance.New(cfg))
	case "bybit":
		router.Register(models.SecurityCrypto, bybit.New(cfg))
	case "rest":
		// Crypto falls through to the REST source like every other type.
	default:
		return nil, fmt.Errorf("%w: unknown crypto provider %q",
			config.ErrInvalidConfiguration, cfg.Source.CryptoProvider)
	}

	return router, nil
}

func buildStore(cfg *config.Config) (writer.Store, error) {
	stores := writer.Multi{writer.NewDiskStore(cfg)}

	if cfg.Storage.S3.Enabled {
		s3Store, err := writer.NewS3Store(cfg)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s3Store)
	}

	if len(stores) == 1 {
		return stores[0], nil
	}
	return stores, nil
}
