package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestForex(t *testing.T) {
	got := Forex(" usdjpy ")
	if got.Symbol != "USD" || got.Currency != "JPY" || got.Kind != AssetForex {
		t.Fatalf("forex = %+v", got)
	}
	if got.Name() != "USDJPY" {
		t.Fatalf("name = %s", got.Name())
	}
}

func TestInstrumentKey(t *testing.T) {
	expiry := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		inst Instrument
		want string
	}{
		{"resolved pair", Instrument{Symbol: "EUR", Currency: "USD", Kind: AssetForex}, "EUR.USD"},
		{"flat pair", Instrument{Symbol: "EURUSD", Currency: "USD", Kind: AssetForex}, "EUR.USD"},
		{"flat pair no currency", Instrument{Symbol: "eurusd", Kind: AssetForex}, "EUR.USD"},
		{"usd.jpy", Forex("USDJPY"), "USD.JPY"},
		{"usd.cad", Forex("USDCAD"), "USD.CAD"},
		{"stock", Instrument{Symbol: "aapl", Kind: AssetStock, Currency: "USD"}, "AAPL"},
		{"option", Instrument{Symbol: "AAPL", Kind: AssetOption, Expiry: expiry,
			Strike: decimal.RequireFromString("170"), Right: RightPut}, "AAPL:20250307:170P"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.inst.Key(); got != tc.want {
				t.Fatalf("key = %s, want %s", got, tc.want)
			}
		})
	}
}

// Пары с общей базой не должны делить лок и экспозицию.
func TestKeySharedBase(t *testing.T) {
	jpy := Contract{Instrument: Forex("USDJPY")}
	cad := Contract{Instrument: Forex("USDCAD")}
	if jpy.Key() == cad.Key() {
		t.Fatalf("USDJPY and USDCAD share key %s", jpy.Key())
	}
}
