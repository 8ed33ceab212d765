package planner

import "histflow/models"

// resolutionClass splits resolutions into the two classes the tick-type
// mapping cares about: raw ticks versus aggregated bars.
type resolutionClass int

const (
	classTick resolutionClass = iota
	classBar
)

func classOf(resolution models.Resolution) resolutionClass {
	if resolution == models.ResolutionTick {
		return classTick
	}
	return classBar
}

// tickTypeTable holds the provider mapping from (security type, resolution
// class) to the tick type that gets downloaded. Security types without a row
// fall back to trade data. The option rows are identical on purpose: the
// mapping is kept explicit per class rather than collapsed into the default.
var tickTypeTable = map[models.SecurityType]map[resolutionClass]models.TickType{
	models.SecurityForex: {
		classTick: models.TickTypeQuote,
		classBar:  models.TickTypeQuote,
	},
	models.SecurityCfd: {
		classTick: models.TickTypeQuote,
		classBar:  models.TickTypeQuote,
	},
	models.SecurityCrypto: {
		classTick: models.TickTypeQuote,
		classBar:  models.TickTypeQuote,
	},
	models.SecurityOption: {
		classTick: models.TickTypeTrade,
		classBar:  models.TickTypeTrade,
	},
}

// InferTickType returns the tick type downloaded for a security type and
// resolution. The result is a pure function of its arguments.
func InferTickType(securityType models.SecurityType, resolution models.Resolution) models.TickType {
	if row, ok := tickTypeTable[securityType]; ok {
		if tt, ok := row[classOf(resolution)]; ok {
			return tt
		}
	}
	return models.TickTypeTrade
}
