package engine

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bracket_bot/internal/broker/brokertest"
	"bracket_bot/internal/models"
)

var cspExpiry = time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC)

func aaplOption(strike int64, right models.Right) models.Instrument {
	return models.Instrument{
		Symbol: "AAPL", Kind: models.AssetOption, Currency: "USD", Exchange: "SMART",
		Strike: decimal.NewFromInt(strike), Expiry: cspExpiry, Right: right,
	}
}

func seedChain(fb *brokertest.Fake, last string, quoted ...int64) {
	fb.SetOptionChain("AAPL", models.OptionChain{
		Last:        dec(last),
		Expirations: []time.Time{cspExpiry.AddDate(0, 0, 7), cspExpiry, cspExpiry.AddDate(0, 0, -7)},
		Strikes:     []decimal.Decimal{decimal.NewFromInt(225), decimal.NewFromInt(230), decimal.NewFromInt(235), decimal.NewFromInt(240)},
	})
	for _, k := range quoted {
		for _, r := range []models.Right{models.RightCall, models.RightPut} {
			fb.SetOptionQuote(models.OptionQuote{
				Contract: models.Contract{ConID: k, Instrument: aaplOption(k, r)},
				Bid:      dec("1.2"),
				Ask:      dec("1.3"),
			})
		}
	}
}

func TestSelectCashSecuredPut(t *testing.T) {
	h := newHarness(t)
	seedChain(h.fb, "232.5", 225, 230, 235, 240)
	today := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	c, err := h.e.SelectCashSecuredPut(context.Background(), CSPRequest{Symbol: "AAPL", MinStrikes: 4, Today: today})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	put := c.Put.Contract.Instrument
	if put.Right != models.RightPut || !put.Strike.Equal(decimal.NewFromInt(230)) || !c.Expiry.Equal(cspExpiry) {
		t.Fatalf("put = %s, expiry %s", put.Key(), c.Expiry)
	}
	if !c.HasMid || !c.Mid.Equal(dec("1.25")) || !c.CashRequired.Equal(dec("23000")) || len(c.Band) != 8 {
		t.Fatalf("candidate = mid %s cash %s band %d", c.Mid, c.CashRequired, len(c.Band))
	}

	// выбранный пут продаём лимиткой по mid
	h.fb.OnSubmit = func(f *brokertest.Fake, s brokertest.Submitted) {
		f.Fill(s.Handle.OrderID, s.Request.Quantity, s.Request.Body.(models.LimitOrder).LimitPrice)
	}
	req, err := c.LimitRequest(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("limit request: %v", err)
	}
	res, err := h.e.PlaceLimitAndAutoCancel(context.Background(), req)
	if err != nil || !res.Filled() {
		t.Fatalf("place: %+v %v", res, err)
	}
	sub := h.fb.Submitted()[0]
	if sub.Request.Action != models.ActionSell || sub.Contract.Instrument.Right != models.RightPut {
		t.Fatalf("submitted %s %s", sub.Request.Action, sub.Contract.Instrument.Key())
	}
	if len(h.audit.rows) != 1 || h.audit.rows[0].Premium != "1.25" {
		t.Fatalf("audit rows = %+v", h.audit.rows)
	}
}

func TestSelectCashSecuredPutEdges(t *testing.T) {
	today := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		setup   func(fb *brokertest.Fake)
		wantErr error
	}{
		{"no chain", func(*brokertest.Fake) {}, models.ErrResolution},
		{"all puts in the money", func(fb *brokertest.Fake) { seedChain(fb, "220", 225, 230) }, ErrNoCandidate},
		{"no quotes", func(fb *brokertest.Fake) { seedChain(fb, "232.5") }, ErrNoCandidate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tc.setup(h.fb)
			_, err := h.e.SelectCashSecuredPut(context.Background(), CSPRequest{Symbol: "AAPL", MinStrikes: 4, Today: today})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}

	t.Run("no mid", func(t *testing.T) {
		c := CSPCandidate{Put: models.OptionQuote{Contract: models.Contract{Instrument: aaplOption(230, models.RightPut)}}}
		if _, err := c.LimitRequest(time.Second); err == nil {
			t.Fatal("limit without mid price")
		}
	})
}
