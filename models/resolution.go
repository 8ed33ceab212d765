package models

import (
	"fmt"
	"strings"
	"time"
)

// Resolution is the bar period of the requested series.
type Resolution string

const (
	ResolutionTick   Resolution = "tick"
	ResolutionSecond Resolution = "second"
	ResolutionMinute Resolution = "minute"
	ResolutionHour   Resolution = "hour"
	ResolutionDaily  Resolution = "daily"
)

// ParseResolution maps a configuration token onto the closed Resolution enum.
func ParseResolution(token string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "tick":
		return ResolutionTick, nil
	case "second":
		return ResolutionSecond, nil
	case "minute":
		return ResolutionMinute, nil
	case "hour":
		return ResolutionHour, nil
	case "daily", "day":
		return ResolutionDaily, nil
	}
	return "", fmt.Errorf("unknown resolution %q", token)
}

func (r Resolution) String() string {
	return string(r)
}

// Period returns the bar span, zero for tick data.
func (r Resolution) Period() time.Duration {
	switch r {
	case ResolutionSecond:
		return time.Second
	case ResolutionMinute:
		return time.Minute
	case ResolutionHour:
		return time.Hour
	case ResolutionDaily:
		return 24 * time.Hour
	}
	return 0
}

// TickType distinguishes trade series from quote series.
type TickType string

const (
	TickTypeTrade TickType = "trade"
	TickTypeQuote TickType = "quote"
)

func (t TickType) String() string {
	return string(t)
}
