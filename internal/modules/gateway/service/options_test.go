package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bracket_bot/internal/models"
)

func optionsHandler(op string, args json.RawMessage) (any, *wireError) {
	switch op {
	case opOptChain:
		var c contractDTO
		_ = sonic.Unmarshal(args, &c)
		if c.Symbol != "AAPL" {
			return optionChainDTO{Underlying: c}, nil
		}
		return optionChainDTO{
			Underlying:  contractDTO{ConID: 265598, Symbol: "AAPL", SecType: "STK", Currency: "USD", Exchange: "SMART"},
			Last:        decimal.RequireFromString("232.5"),
			Expirations: []string{"20261023", "20261030", "garbage"},
			Strikes:     []decimal.Decimal{decimal.NewFromInt(230), decimal.NewFromInt(235)},
		}, nil
	case opTickers:
		var cs []contractDTO
		_ = sonic.Unmarshal(args, &cs)
		iv := 0.27
		out := make([]tickerDTO, 0, len(cs))
		for i, c := range cs {
			c.ConID = int64(1000 + i)
			out = append(out, tickerDTO{Contract: c, Bid: decimal.RequireFromString("1.2"), Ask: decimal.RequireFromString("1.3"), ImpliedVol: &iv})
		}
		return out, nil
	}
	return defaultHandler(op, args)
}

func TestClientOptionChain(t *testing.T) {
	b := newBridge(t, optionsHandler)
	c := connected(t, b, time.Second)
	ctx := context.Background()

	chain, err := c.OptionChain(ctx, models.Instrument{Symbol: "AAPL", Kind: models.AssetStock, Currency: "USD", Exchange: "SMART"})
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if chain.Underlying.ConID != 265598 || !chain.Last.Equal(decimal.RequireFromString("232.5")) {
		t.Fatalf("chain = %+v", chain)
	}
	if len(chain.Expirations) != 2 || chain.Expirations[0].Day() != 23 || len(chain.Strikes) != 2 {
		t.Fatalf("expirations %v strikes %v", chain.Expirations, chain.Strikes)
	}

	_, err = c.OptionChain(ctx, models.Instrument{Symbol: "NOPE", Kind: models.AssetStock})
	if !errors.Is(err, models.ErrResolution) {
		t.Fatalf("empty chain: want ErrResolution, got %v", err)
	}
}

func TestClientQuoteOptions(t *testing.T) {
	b := newBridge(t, optionsHandler)
	c := connected(t, b, time.Second)

	exp := time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC)
	put := models.Instrument{Symbol: "AAPL", Kind: models.AssetOption, Currency: "USD", Exchange: "SMART",
		Strike: decimal.NewFromInt(230), Expiry: exp, Right: models.RightPut}

	quotes, err := c.QuoteOptions(context.Background(), []models.Instrument{put})
	if err != nil || len(quotes) != 1 {
		t.Fatalf("quotes: %+v %v", quotes, err)
	}
	q := quotes[0]
	if q.IV != 0.27 || q.Contract.Instrument.Right != models.RightPut || !q.Contract.Instrument.Expiry.Equal(exp) {
		t.Fatalf("quote = %+v", q)
	}
	req, _ := b.last(opTickers)
	var sent []contractDTO
	if err := sonic.Unmarshal(req.Args, &sent); err != nil || len(sent) != 1 || sent[0].Expiry != "20261023" || sent[0].SecType != "OPT" {
		t.Fatalf("tickers args = %s", req.Args)
	}
}
