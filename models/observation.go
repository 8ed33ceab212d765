package models

import "time"

// Observation is one raw market data point returned by a provider. The
// payload fields used depend on the tick type of the request: trade series
// fill the OHLCV fields (tick resolution uses Close/Volume as price and
// size), quote series fill the bid/ask fields. EndTime is always UTC.
type Observation struct {
	EndTime time.Time `json:"end_time"`

	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`

	BidPrice float64 `json:"bid_price"`
	BidSize  float64 `json:"bid_size"`
	AskPrice float64 `json:"ask_price"`
	AskSize  float64 `json:"ask_size"`
}

// OrderedBatch is a validated, non-empty observation sequence for one
// instrument, sorted non-decreasing by end time. Only the sequencer
// constructs these; the store consumes and discards them.
type OrderedBatch struct {
	BatchID      string        `json:"batch_id"`
	Instrument   Instrument    `json:"instrument"`
	Resolution   Resolution    `json:"resolution"`
	TickType     TickType      `json:"tick_type"`
	Observations []Observation `json:"observations"`
	RecordCount  int           `json:"record_count"`
}
