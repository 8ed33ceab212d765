package models

import (
	"fmt"
	"strings"
)

// SecurityType identifies the asset class of an instrument.
type SecurityType string

const (
	SecurityEquity SecurityType = "equity"
	SecurityOption SecurityType = "option"
	SecurityFuture SecurityType = "future"
	SecurityForex  SecurityType = "forex"
	SecurityCfd    SecurityType = "cfd"
	SecurityCrypto SecurityType = "crypto"
)

// ParseSecurityType maps a configuration token onto the closed SecurityType
// enum. Unknown tokens are a configuration error, not a per-instrument one.
func ParseSecurityType(token string) (SecurityType, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "equity":
		return SecurityEquity, nil
	case "option":
		return SecurityOption, nil
	case "future":
		return SecurityFuture, nil
	case "forex":
		return SecurityForex, nil
	case "cfd":
		return SecurityCfd, nil
	case "crypto":
		return SecurityCrypto, nil
	}
	return "", fmt.Errorf("unknown security type %q", token)
}

func (s SecurityType) String() string {
	return string(s)
}

// Instrument is the canonical identity of one downloadable series.
// Instances are created once by the resolver and compared by value.
type Instrument struct {
	Ticker       string       `json:"ticker"`
	SecurityType SecurityType `json:"security_type"`
	Market       string       `json:"market"`
}

// Key returns a unique identifier: "market:ticker".
func (i Instrument) Key() string {
	return i.Market + ":" + i.Ticker
}
