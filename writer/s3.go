package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "histflow/config"
	"histflow/logger"
	"histflow/models"
)

// S3Store mirrors written partitions into an S3 bucket under a configurable
// prefix, using the same partition layout as the disk store.
type S3Store struct {
	config *appconfig.Config
	client *s3.Client
	bucket string
	prefix string
	log    *logger.Log
}

// NewS3Store creates an S3Store. It configures the AWS SDK, preferring
// static credentials from configuration when present, and validates that
// credentials resolve before accepting writes.
func NewS3Store(cfg *appconfig.Config) (*S3Store, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Storage.S3.Region)}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_writer").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	store := &S3Store{
		config: cfg,
		client: s3.NewFromConfig(awsConfig),
		bucket: cfg.Storage.S3.Bucket,
		prefix: cfg.Storage.S3.Prefix,
		log:    log,
	}

	log.WithComponent("s3_writer").WithFields(logger.Fields{
		"bucket": store.bucket,
		"region": cfg.Storage.S3.Region,
	}).Info("s3 writer initialized")

	return store, nil
}

func (s *S3Store) Write(ctx context.Context, batch models.OrderedBatch) error {
	if batch.RecordCount == 0 || len(batch.Observations) == 0 {
		return fmt.Errorf("%w: refusing to write empty batch %s", ErrWriteFailure, batch.BatchID)
	}

	log := s.log.WithComponent("s3_writer").WithFields(logger.Fields{
		"batch_id":     batch.BatchID,
		"ticker":       batch.Instrument.Ticker,
		"record_count": batch.RecordCount,
	})

	start := time.Now()

	if s.config.Storage.Formats.Parquet.Enabled {
		data, err := encodeParquet(batch, s.config.Storage.Formats.Parquet.Compression)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
		if err := s.upload(ctx, batch, "parquet", data); err != nil {
			return err
		}
	}

	if s.config.Storage.Formats.Csv.Enabled {
		data, err := encodeCsvZip(batch)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
		if err := s.upload(ctx, batch, "zip", data); err != nil {
			return err
		}
	}

	logger.LogPerformanceEntry(log, "s3_writer", "upload_partition", time.Since(start), logger.Fields{
		"partition": partitionPath(batch),
	})

	return nil
}

func (s *S3Store) upload(ctx context.Context, batch models.OrderedBatch, ext string, data []byte) error {
	key := path.Join(s.prefix, partitionPath(batch), partitionFile(batch, ext))

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}); err != nil {
		return fmt.Errorf("%w: put s3://%s/%s: %v", ErrWriteFailure, s.bucket, key, err)
	}

	s.log.WithComponent("s3_writer").WithFields(logger.Fields{
		"key":   key,
		"bytes": len(data),
	}).Debug("partition uploaded")

	return nil
}
