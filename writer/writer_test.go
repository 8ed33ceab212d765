package writer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	appconfig "histflow/config"
	"histflow/models"
)

func testBatch(tickType models.TickType) models.OrderedBatch {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	observations := []models.Observation{
		{EndTime: base.Add(time.Minute), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100,
			BidPrice: 1.49, BidSize: 10, AskPrice: 1.51, AskSize: 12},
		{EndTime: base.Add(2 * time.Minute), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 200,
			BidPrice: 1.99, BidSize: 20, AskPrice: 2.01, AskSize: 22},
	}
	return models.OrderedBatch{
		BatchID:      "test-batch",
		Instrument:   models.Instrument{Ticker: "AAPL", SecurityType: models.SecurityEquity, Market: "usa"},
		Resolution:   models.ResolutionMinute,
		TickType:     tickType,
		Observations: observations,
		RecordCount:  len(observations),
	}
}

func diskConfig(root string, parquetOn, csvOn bool) *appconfig.Config {
	return &appconfig.Config{
		Storage: appconfig.StorageConfig{
			Root: root,
			Formats: appconfig.FormatsConfig{
				Parquet: appconfig.ParquetConfig{Enabled: parquetOn, Compression: "snappy"},
				Csv:     appconfig.CsvConfig{Enabled: csvOn},
			},
		},
	}
}

func TestPartitionPath(t *testing.T) {
	got := partitionPath(testBatch(models.TickTypeTrade))
	if got != "equity/usa/minute/aapl" {
		t.Fatalf("unexpected partition path %q", got)
	}
}

func TestPartitionFile(t *testing.T) {
	got := partitionFile(testBatch(models.TickTypeQuote), "parquet")
	if got != "20240101_quote.parquet" {
		t.Fatalf("unexpected partition file %q", got)
	}
}

func TestDiskStoreWritesParquetPartition(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(diskConfig(root, true, false))

	if err := store.Write(context.Background(), testBatch(models.TickTypeTrade)); err != nil {
		t.Fatalf("write: %v", err)
	}

	target := filepath.Join(root, "equity", "usa", "minute", "aapl", "20240101_trade.parquet")
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("expected partition file: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("partition file is empty")
	}

	// No temp files may survive a successful write.
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("read partition dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".histflow-") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}

func TestDiskStoreOverwritesPartition(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(diskConfig(root, true, false))
	batch := testBatch(models.TickTypeTrade)

	if err := store.Write(context.Background(), batch); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := store.Write(context.Background(), batch); err != nil {
		t.Fatalf("second write: %v", err)
	}

	dir := filepath.Join(root, "equity", "usa", "minute", "aapl")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read partition dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 partition file after overwrite, got %d", len(entries))
	}
}

func TestDiskStoreRejectsEmptyBatch(t *testing.T) {
	store := NewDiskStore(diskConfig(t.TempDir(), true, false))
	batch := testBatch(models.TickTypeTrade)
	batch.Observations = nil
	batch.RecordCount = 0

	if err := store.Write(context.Background(), batch); !errors.Is(err, ErrWriteFailure) {
		t.Fatalf("expected ErrWriteFailure for empty batch, got %v", err)
	}
}

func TestEncodeCsvZipTradeRows(t *testing.T) {
	data, err := encodeCsvZip(testBatch(models.TickTypeTrade))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 1 {
		t.Fatalf("expected 1 zip entry, got %d", len(zr.File))
	}
	if zr.File[0].Name != "aapl_minute_trade.csv" {
		t.Fatalf("unexpected entry name %q", zr.File[0].Name)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 3 { // header + 2 rows
		t.Fatalf("expected 3 csv lines, got %d", len(lines))
	}
	if lines[0] != "end_time,open,high,low,close,volume" {
		t.Fatalf("unexpected header %q", lines[0])
	}
}

func TestEncodeCsvZipQuoteHeader(t *testing.T) {
	data, err := encodeCsvZip(testBatch(models.TickTypeQuote))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if !strings.HasPrefix(string(content), "end_time,bid_price,bid_size,ask_price,ask_size") {
		t.Fatalf("unexpected quote header: %q", strings.SplitN(string(content), "\n", 2)[0])
	}
}

func TestEncodeParquetProducesData(t *testing.T) {
	for _, tt := range []models.TickType{models.TickTypeTrade, models.TickTypeQuote} {
		data, err := encodeParquet(testBatch(tt), "snappy")
		if err != nil {
			t.Fatalf("encode %s: %v", tt, err)
		}
		if len(data) == 0 {
			t.Fatalf("empty parquet output for %s", tt)
		}
		// Parquet files are framed by the PAR1 magic bytes.
		if !bytes.HasPrefix(data, []byte("PAR1")) || !bytes.HasSuffix(data, []byte("PAR1")) {
			t.Fatalf("missing parquet magic for %s", tt)
		}
	}
}

func TestMultiStopsAtFirstFailure(t *testing.T) {
	var calls []string
	ok := storeFunc(func(ctx context.Context, batch models.OrderedBatch) error {
		calls = append(calls, "ok")
		return nil
	})
	fail := storeFunc(func(ctx context.Context, batch models.OrderedBatch) error {
		calls = append(calls, "fail")
		return ErrWriteFailure
	})
	never := storeFunc(func(ctx context.Context, batch models.OrderedBatch) error {
		calls = append(calls, "never")
		return nil
	})

	err := Multi{ok, fail, never}.Write(context.Background(), testBatch(models.TickTypeTrade))
	if !errors.Is(err, ErrWriteFailure) {
		t.Fatalf("expected ErrWriteFailure, got %v", err)
	}
	if len(calls) != 2 || calls[1] != "fail" {
		t.Fatalf("unexpected call order %v", calls)
	}
}

type storeFunc func(ctx context.Context, batch models.OrderedBatch) error

func (f storeFunc) Write(ctx context.Context, batch models.OrderedBatch) error {
	return f(ctx, batch)
}
