package service

import (
	"testing"
	"time"

	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/config"
)

func seriesOf(closes ...float64) models.SymbolSeries {
	t0 := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	out := make(models.SymbolSeries, len(closes))
	for i, c := range closes {
		out[i] = models.Bar{Time: t0.Add(time.Duration(i) * 30 * time.Second), Close: c}
	}
	return out
}

func mirror(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = 200 - c
	}
	return out
}

func TestCrossover(t *testing.T) {
	gate := NewCrossover(CrossoverConfig{SlowEMA: 6, SlowSMA: 6, FastEMA: 2, TrendEMA: 3})
	buy := []float64{102, 96, 101, 93, 96, 108, 103, 108, 96, 105}

	cases := []struct {
		name   string
		closes []float64
		want   models.Decision
	}{
		{"too short", buy[:5], models.DecisionHold},
		{"flat", []float64{100, 100, 100, 100, 100, 100, 100, 100, 100}, models.DecisionHold},
		{"cross up", buy, models.DecisionBuy},
		{"cross down", mirror(buy), models.DecisionSell},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := gate.Evaluate("EURUSD", seriesOf(tc.closes...)); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSMACross(t *testing.T) {
	gate := NewSMACross(2, 4)
	cases := []struct {
		name   string
		closes []float64
		want   models.Decision
	}{
		{"short", []float64{1, 2, 3}, models.DecisionHold},
		{"rising", []float64{1, 2, 3, 4, 5}, models.DecisionBuy},
		{"falling", []float64{5, 4, 3, 2, 1}, models.DecisionSell},
		{"flat", []float64{2, 2, 2, 2}, models.DecisionHold},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := gate.Evaluate("EURUSD", seriesOf(tc.closes...)); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNewGate(t *testing.T) {
	for _, name := range []string{"", GateMA4, GateSMA, GateDonchian} {
		cfg := &config.Config{Trading: config.TradingConfig{Strategy: name}}
		if _, err := NewGate(cfg); err != nil {
			t.Fatalf("%q: %v", name, err)
		}
	}
	if _, err := NewGate(&config.Config{Trading: config.TradingConfig{Strategy: "rsi"}}); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func channelOf(closes ...float64) models.SymbolSeries {
	out := seriesOf(closes...)
	for i := range out {
		out[i].High, out[i].Low = out[i].Close, out[i].Close
	}
	return out
}

func TestDonchian(t *testing.T) {
	gate := NewDonchian(3, 3)
	cases := []struct {
		name   string
		closes []float64
		want   models.Decision
	}{
		{"warmup", []float64{1, 2}, models.DecisionHold},
		{"breakout up", []float64{1, 1, 1, 1, 2}, models.DecisionBuy},
		{"breakout down", []float64{2, 2, 2, 2, 1}, models.DecisionSell},
		{"inside channel", []float64{1, 3, 1, 3, 2}, models.DecisionHold},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := gate.Evaluate("EURUSD", channelOf(tc.closes...)); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}
