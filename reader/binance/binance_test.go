package binance

import (
	"errors"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"histflow/reader"
)

func TestKlineObservation(t *testing.T) {
	k := &binance.Kline{
		OpenTime:  1704096000000, // 2024-01-01T08:00:00Z
		Open:      "42000.1",
		High:      "42100.5",
		Low:       "41900.0",
		Close:     "42050.2",
		Volume:    "12.5",
		CloseTime: 1704096059999,
	}

	obs, err := klineObservation(k, time.Minute)
	if err != nil {
		t.Fatalf("klineObservation: %v", err)
	}
	wantEnd := time.Date(2024, 1, 1, 8, 1, 0, 0, time.UTC)
	if !obs.EndTime.Equal(wantEnd) {
		t.Fatalf("unexpected end time %s, want %s", obs.EndTime, wantEnd)
	}
	if obs.Open != 42000.1 || obs.Close != 42050.2 || obs.Volume != 12.5 {
		t.Fatalf("unexpected observation %+v", obs)
	}
	if obs.BidPrice != obs.Close || obs.AskPrice != obs.Close {
		t.Fatalf("quote fields should mirror close: %+v", obs)
	}
}

func TestKlineObservationBadField(t *testing.T) {
	k := &binance.Kline{Open: "not-a-number", High: "1", Low: "1", Close: "1", Volume: "1"}
	if _, err := klineObservation(k, time.Minute); err == nil {
		t.Fatalf("expected error for malformed kline")
	}
}

func TestClassifyInvalidSymbol(t *testing.T) {
	err := classify(&common.APIError{Code: -1121, Message: "Invalid symbol."})
	if !errors.Is(err, reader.ErrUnsupportedRequest) {
		t.Fatalf("expected ErrUnsupportedRequest, got %v", err)
	}
}

func TestClassifyTransportFault(t *testing.T) {
	err := classify(errors.New("connection reset"))
	if !errors.Is(err, reader.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	err = classify(&common.APIError{Code: -1003, Message: "Too many requests."})
	if !errors.Is(err, reader.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable for rate limit, got %v", err)
	}
}
