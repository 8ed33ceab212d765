package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"histflow/models"
)

// writeTempConfig creates a minimal configuration file required for
// LoadConfig and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const minimalYAML = `histflow:
  name: "TestApp"
  version: "1.0"
download:
  tickers: ["AAPL", "MSFT"]
  security_type: equity
  resolution: minute
  start: "2024-01-01"
  end: "2024-01-02"
storage:
  root: "/tmp/data"
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Histflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Histflow.Name)
	}
	if cfg.Download.MaxWorkers != 1 {
		t.Errorf("expected default max workers 1, got %d", cfg.Download.MaxWorkers)
	}
	if cfg.Reader.RateLimit.RequestsPerSecond != 5 {
		t.Errorf("expected default rps 5, got %d", cfg.Reader.RateLimit.RequestsPerSecond)
	}
	if !cfg.Storage.Formats.Parquet.Enabled {
		t.Errorf("expected parquet enabled by default")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("HF_TEST_ROOT", "/var/lib/histflow")
	path := writeTempConfig(t, `histflow:
  name: "TestApp"
  version: "1.0"
storage:
  root: "${HF_TEST_ROOT}"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Storage.Root != "/var/lib/histflow" {
		t.Errorf("env expansion failed: %s", cfg.Storage.Root)
	}
}

func TestDownloadParams(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	params, err := cfg.DownloadParams()
	if err != nil {
		t.Fatalf("DownloadParams failed: %v", err)
	}
	if params.SecurityType != models.SecurityEquity {
		t.Errorf("unexpected security type: %s", params.SecurityType)
	}
	if params.Resolution != models.ResolutionMinute {
		t.Errorf("unexpected resolution: %s", params.Resolution)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !params.Start.Equal(want) {
		t.Errorf("unexpected start: %s", params.Start)
	}
}

func TestDownloadParamsBadSecurityType(t *testing.T) {
	cfg := &Config{Download: DownloadConfig{
		SecurityType: "bond",
		Resolution:   "minute",
		Start:        "2024-01-01",
	}}
	if _, err := cfg.DownloadParams(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestDownloadParamsInvertedRange(t *testing.T) {
	cfg := &Config{Download: DownloadConfig{
		SecurityType: "equity",
		Resolution:   "minute",
		Start:        "2024-02-01",
		End:          "2024-01-01",
	}}
	if _, err := cfg.DownloadParams(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for inverted range, got %v", err)
	}
}

func TestDownloadParamsMissingStart(t *testing.T) {
	cfg := &Config{Download: DownloadConfig{
		SecurityType: "equity",
		Resolution:   "daily",
	}}
	if _, err := cfg.DownloadParams(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for missing start, got %v", err)
	}
}

func TestValidateS3Bucket(t *testing.T) {
	if !isValidS3Bucket("histflow-data") {
		t.Errorf("expected valid bucket name")
	}
	if isValidS3Bucket("Bad_Bucket") {
		t.Errorf("expected invalid bucket name")
	}
	if isValidS3Bucket("a..b") {
		t.Errorf("expected invalid bucket with double dots")
	}
}
