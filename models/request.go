package models

import "time"

// FetchRequest is one concrete download unit handed to a provider gateway.
// Both range bounds carry explicit UTC location; the planner guarantees
// RangeStart <= RangeEnd before a request is constructed.
type FetchRequest struct {
	Instrument Instrument `json:"instrument"`
	Resolution Resolution `json:"resolution"`
	TickType   TickType   `json:"tick_type"`
	RangeStart time.Time  `json:"range_start"`
	RangeEnd   time.Time  `json:"range_end"`
}
