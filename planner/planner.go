package planner

import (
	"errors"
	"fmt"
	"time"

	"histflow/models"
)

// ErrUnsupportedCombination reports a resolution/security-type pairing that
// is outside the closed enums. It concerns a global run parameter, so callers
// treat it as fatal for the whole batch.
var ErrUnsupportedCombination = errors.New("unsupported resolution/security-type combination")

var validResolutions = map[models.Resolution]struct{}{
	models.ResolutionTick:   {},
	models.ResolutionSecond: {},
	models.ResolutionMinute: {},
	models.ResolutionHour:   {},
	models.ResolutionDaily:  {},
}

var validSecurityTypes = map[models.SecurityType]struct{}{
	models.SecurityEquity: {},
	models.SecurityOption: {},
	models.SecurityFuture: {},
	models.SecurityForex:  {},
	models.SecurityCfd:    {},
	models.SecurityCrypto: {},
}

// Plan derives the concrete fetch request for one resolved instrument:
// infers the tick type from the mapping table, attaches UTC to both range
// bounds, and defaults a zero end to the current time. No timezone
// arithmetic is applied; the UTC designation is simply forced.
func Plan(instrument models.Instrument, resolution models.Resolution, rangeStart, rangeEnd time.Time) (models.FetchRequest, error) {
	if _, ok := validResolutions[resolution]; !ok {
		return models.FetchRequest{}, fmt.Errorf("%w: resolution %q", ErrUnsupportedCombination, resolution)
	}
	if _, ok := validSecurityTypes[instrument.SecurityType]; !ok {
		return models.FetchRequest{}, fmt.Errorf("%w: security type %q", ErrUnsupportedCombination, instrument.SecurityType)
	}

	if rangeEnd.IsZero() {
		rangeEnd = time.Now().UTC()
	}
	start := forceUTC(rangeStart)
	end := forceUTC(rangeEnd)

	if start.After(end) {
		return models.FetchRequest{}, fmt.Errorf("%w: range start %s after end %s",
			ErrUnsupportedCombination, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	return models.FetchRequest{
		Instrument: instrument,
		Resolution: resolution,
		TickType:   InferTickType(instrument.SecurityType, resolution),
		RangeStart: start,
		RangeEnd:   end,
	}, nil
}

// forceUTC re-labels a timestamp as UTC while keeping its wall-clock
// reading. Naive/local values coming from config files are treated as
// already being UTC.
func forceUTC(t time.Time) time.Time {
	if t.Location() == time.UTC {
		return t
	}
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	return time.Date(year, month, day, hour, min, sec, t.Nanosecond(), time.UTC)
}
