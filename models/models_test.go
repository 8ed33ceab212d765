package models

import "testing"

func TestParseSecurityType(t *testing.T) {
	cases := []struct {
		token string
		want  SecurityType
	}{
		{"equity", SecurityEquity},
		{"Equity", SecurityEquity},
		{"  FOREX ", SecurityForex},
		{"cfd", SecurityCfd},
		{"CRYPTO", SecurityCrypto},
		{"option", SecurityOption},
		{"future", SecurityFuture},
	}
	for _, c := range cases {
		got, err := ParseSecurityType(c.token)
		if err != nil {
			t.Fatalf("ParseSecurityType(%q): %v", c.token, err)
		}
		if got != c.want {
			t.Fatalf("ParseSecurityType(%q) = %s, want %s", c.token, got, c.want)
		}
	}
}

func TestParseSecurityTypeUnknown(t *testing.T) {
	if _, err := ParseSecurityType("bond"); err == nil {
		t.Fatalf("expected error for unknown security type")
	}
}

func TestParseResolution(t *testing.T) {
	cases := []struct {
		token string
		want  Resolution
	}{
		{"tick", ResolutionTick},
		{"Second", ResolutionSecond},
		{"minute", ResolutionMinute},
		{"HOUR", ResolutionHour},
		{"daily", ResolutionDaily},
		{"day", ResolutionDaily},
	}
	for _, c := range cases {
		got, err := ParseResolution(c.token)
		if err != nil {
			t.Fatalf("ParseResolution(%q): %v", c.token, err)
		}
		if got != c.want {
			t.Fatalf("ParseResolution(%q) = %s, want %s", c.token, got, c.want)
		}
	}
	if _, err := ParseResolution("fortnight"); err == nil {
		t.Fatalf("expected error for unknown resolution")
	}
}

func TestInstrumentKey(t *testing.T) {
	inst := Instrument{Ticker: "AAPL", SecurityType: SecurityEquity, Market: "usa"}
	if inst.Key() != "usa:AAPL" {
		t.Fatalf("unexpected key %s", inst.Key())
	}
}
