package helper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bracket_bot/internal/models"
)

func TestPipSize(t *testing.T) {
	cases := []struct {
		name string
		inst models.Instrument
		want string
	}{
		{"eurusd", models.Instrument{Symbol: "EURUSD", Kind: models.AssetForex}, "0.0001"},
		{"usdjpy", models.Instrument{Symbol: "USDJPY", Kind: models.AssetForex}, "0.01"},
		{"lower jpy", models.Instrument{Symbol: "eurjpy", Kind: models.AssetForex}, "0.01"},
		{"option", models.Instrument{Symbol: "SPY", Kind: models.AssetOption}, "0.01"},
		{"resolved usd.jpy", models.Instrument{Symbol: "USD", Currency: "JPY", Kind: models.AssetForex}, "0.01"},
		{"resolved usd.cad", models.Instrument{Symbol: "USD", Currency: "CAD", Kind: models.AssetForex}, "0.0001"},
		{"forex helper", models.Forex("gbpjpy"), "0.01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PipSize(tc.inst)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("pip size = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestOffsetPrice(t *testing.T) {
	pip := decimal.RequireFromString("0.0001")
	fill := decimal.RequireFromString("1.10000")

	up := OffsetPrice(fill, 5, pip, 1)
	if !up.Equal(decimal.RequireFromString("1.10050")) {
		t.Fatalf("up = %s", up)
	}
	down := OffsetPrice(fill, 5, pip, -1)
	if !down.Equal(decimal.RequireFromString("1.09950")) {
		t.Fatalf("down = %s", down)
	}
}

func TestNormalizeExpiry(t *testing.T) {
	fri := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	for _, d := range []int{0, 1, 2} {
		in := fri.AddDate(0, 0, d)
		if got := NormalizeExpiry(in); !got.Equal(fri) {
			t.Fatalf("%s -> %s, want %s", in.Weekday(), got, fri)
		}
	}
	mon := fri.AddDate(0, 0, 3)
	if got := NormalizeExpiry(mon); !got.Equal(mon) {
		t.Fatalf("monday changed: %s", got)
	}
}

func TestParseExpiry(t *testing.T) {
	for _, raw := range []string{"20250307", "2025-03-07"} {
		got, err := ParseExpiry(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if FormatExpiry(got) != "20250307" {
			t.Fatalf("format = %s", FormatExpiry(got))
		}
	}
	if _, err := ParseExpiry("07.03.2025"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRoundToTick(t *testing.T) {
	tick := decimal.RequireFromString("0.05")
	px := decimal.RequireFromString("1.23")
	if got := RoundDownToTick(px, tick); !got.Equal(decimal.RequireFromString("1.20")) {
		t.Fatalf("down = %s", got)
	}
	if got := RoundUpToTick(px, tick); !got.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("up = %s", got)
	}
}

func TestUntilNextSlot(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 12, 0, time.UTC)
	if got := UntilNextSlot(now, 30*time.Second); got != 18*time.Second {
		t.Fatalf("wait = %s", got)
	}
}
