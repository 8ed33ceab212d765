package writer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pwriter "github.com/xitongsys/parquet-go/writer"

	"histflow/models"
)

// tradeRecord is the parquet row layout for trade series.
type tradeRecord struct {
	EndTime int64   `parquet:"name=end_time, type=INT64"`
	Open    float64 `parquet:"name=open, type=DOUBLE"`
	High    float64 `parquet:"name=high, type=DOUBLE"`
	Low     float64 `parquet:"name=low, type=DOUBLE"`
	Close   float64 `parquet:"name=close, type=DOUBLE"`
	Volume  float64 `parquet:"name=volume, type=DOUBLE"`
}

// quoteRecord is the parquet row layout for quote series.
type quoteRecord struct {
	EndTime  int64   `parquet:"name=end_time, type=INT64"`
	BidPrice float64 `parquet:"name=bid_price, type=DOUBLE"`
	BidSize  float64 `parquet:"name=bid_size, type=DOUBLE"`
	AskPrice float64 `parquet:"name=ask_price, type=DOUBLE"`
	AskSize  float64 `parquet:"name=ask_size, type=DOUBLE"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory
// writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToLower(name) {
	case "gzip":
		return parquet.CompressionCodec_GZIP
	case "none", "uncompressed":
		return parquet.CompressionCodec_UNCOMPRESSED
	default:
		return parquet.CompressionCodec_SNAPPY
	}
}

// encodeParquet renders a batch into parquet bytes. Trade and quote series
// use separate row schemas.
func encodeParquet(batch models.OrderedBatch, compression string) ([]byte, error) {
	mfw := newMemoryFileWriter()

	var template interface{}
	if batch.TickType == models.TickTypeQuote {
		template = new(quoteRecord)
	} else {
		template = new(tradeRecord)
	}

	pw, err := pwriter.NewParquetWriter(mfw, template, 1)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, obs := range batch.Observations {
		var row interface{}
		if batch.TickType == models.TickTypeQuote {
			row = quoteRecord{
				EndTime:  obs.EndTime.UnixMilli(),
				BidPrice: obs.BidPrice,
				BidSize:  obs.BidSize,
				AskPrice: obs.AskPrice,
				AskSize:  obs.AskSize,
			}
		} else {
			row = tradeRecord{
				EndTime: obs.EndTime.UnixMilli(),
				Open:    obs.Open,
				High:    obs.High,
				Low:     obs.Low,
				Close:   obs.Close,
				Volume:  obs.Volume,
			}
		}
		if err := pw.Write(row); err != nil {
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet file: %w", err)
	}

	return mfw.Bytes(), nil
}
