package main

import (
	"testing"
	"time"

	"bracket_bot/internal/models"
)

func TestParseFlags(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"full", []string{"--symbol", "spy", "--expiry", "20261024", "--strike", "450", "--price", "2.35", "--wait", "5s"}, false},
		{"missing price", []string{"--symbol", "SPY", "--expiry", "20261024", "--strike", "450"}, true},
		{"bad flag", []string{"--nope"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, err := parseFlags(tc.args)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			req, err := o.request()
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if req.Instrument.Symbol != "SPY" || req.Instrument.Kind != models.AssetOption || req.Instrument.Right != models.RightCall {
				t.Fatalf("instrument = %+v", req.Instrument)
			}
			if req.Wait != 5*time.Second || req.Quantity != 1 || req.LimitPrice.String() != "2.35" {
				t.Fatalf("request = %+v", req)
			}
		})
	}
}

func TestParseFlagsCSP(t *testing.T) {
	o, err := parseFlags([]string{"--csp", "--symbol", "aapl", "--min-strikes", "12"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	req := o.cspRequest()
	if req.Symbol != "AAPL" || req.MinStrikes != 12 || req.Quantity != 1 {
		t.Fatalf("csp request = %+v", req)
	}
	if _, err := parseFlags([]string{"--csp"}); err == nil {
		t.Fatal("--csp without --symbol must fail")
	}
}
