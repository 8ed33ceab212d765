package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	appconfig "histflow/config"
	"histflow/logger"
	"histflow/models"
)

// DiskStore persists ordered batches into a resolution- and
// symbol-partitioned directory tree under a single root. Partitions are
// replaced atomically: the file is written next to its final location and
// renamed into place.
type DiskStore struct {
	config *appconfig.Config
	root   string
	log    *logger.Log
}

// NewDiskStore creates a DiskStore rooted at the configured storage path.
func NewDiskStore(cfg *appconfig.Config) *DiskStore {
	log := logger.GetLogger()

	store := &DiskStore{
		config: cfg,
		root:   cfg.Storage.Root,
		log:    log,
	}

	log.WithComponent("disk_writer").WithFields(logger.Fields{
		"root":    cfg.Storage.Root,
		"parquet": cfg.Storage.Formats.Parquet.Enabled,
		"csv":     cfg.Storage.Formats.Csv.Enabled,
	}).Info("disk writer initialized")

	return store
}

func (s *DiskStore) Write(ctx context.Context, batch models.OrderedBatch) error {
	if batch.RecordCount == 0 || len(batch.Observations) == 0 {
		return fmt.Errorf("%w: refusing to write empty batch %s", ErrWriteFailure, batch.BatchID)
	}

	log := s.log.WithComponent("disk_writer").WithFields(logger.Fields{
		"batch_id":     batch.BatchID,
		"ticker":       batch.Instrument.Ticker,
		"resolution":   batch.Resolution.String(),
		"tick_type":    batch.TickType.String(),
		"record_count": batch.RecordCount,
	})

	dir := filepath.Join(s.root, filepath.FromSlash(partitionPath(batch)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create partition dir: %v", ErrWriteFailure, err)
	}

	start := time.Now()

	if s.config.Storage.Formats.Parquet.Enabled {
		data, err := encodeParquet(batch, s.config.Storage.Formats.Parquet.Compression)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
		if err := s.replaceFile(filepath.Join(dir, partitionFile(batch, "parquet")), data); err != nil {
			return err
		}
	}

	if s.config.Storage.Formats.Csv.Enabled {
		data, err := encodeCsvZip(batch)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
		if err := s.replaceFile(filepath.Join(dir, partitionFile(batch, "zip")), data); err != nil {
			return err
		}
	}

	logger.LogPerformanceEntry(log, "disk_writer", "write_partition", time.Since(start), logger.Fields{
		"partition": partitionPath(batch),
	})
	log.Info("partition written")

	return nil
}

// replaceFile writes data to a temporary sibling and renames it over the
// target, so readers never observe a torn partition.
func (s *DiskStore) replaceFile(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".histflow-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrWriteFailure, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp file: %v", ErrWriteFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", ErrWriteFailure, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace partition: %v", ErrWriteFailure, err)
	}
	return nil
}
