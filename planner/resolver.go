package planner

import (
	"strings"

	"histflow/models"
)

// DefaultMarket is used when the run parameters do not name a market.
const DefaultMarket = "usa"

// Resolve turns a raw ticker plus the run's security type and market hints
// into a canonical instrument identity. Pure; callers are expected to have
// filtered blank tickers already.
func Resolve(ticker string, securityType models.SecurityType, market string) models.Instrument {
	market = strings.ToLower(strings.TrimSpace(market))
	if market == "" {
		market = DefaultMarket
	}
	return models.Instrument{
		Ticker:       strings.TrimSpace(ticker),
		SecurityType: securityType,
		Market:       market,
	}
}
