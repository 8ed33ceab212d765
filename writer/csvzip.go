package writer

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"histflow/models"
)

// encodeCsvZip renders a batch as a single CSV file inside a zip archive,
// one row per observation, oldest first.
func encodeCsvZip(batch models.OrderedBatch) ([]byte, error) {
	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)

	name := fmt.Sprintf("%s_%s_%s.csv",
		strings.ToLower(batch.Instrument.Ticker),
		batch.Resolution.String(),
		batch.TickType.String())

	entry, err := archive.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create zip entry: %w", err)
	}

	w := csv.NewWriter(entry)
	quote := batch.TickType == models.TickTypeQuote

	header := []string{"end_time", "open", "high", "low", "close", "volume"}
	if quote {
		header = []string{"end_time", "bid_price", "bid_size", "ask_price", "ask_size"}
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, obs := range batch.Observations {
		ts := strconv.FormatInt(obs.EndTime.UnixMilli(), 10)
		var row []string
		if quote {
			row = []string{ts, f(obs.BidPrice), f(obs.BidSize), f(obs.AskPrice), f(obs.AskSize)}
		} else {
			row = []string{ts, f(obs.Open), f(obs.High), f(obs.Low), f(obs.Close), f(obs.Volume)}
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}

	return buf.Bytes(), nil
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
