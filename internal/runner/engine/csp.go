package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bracket_bot/internal/helper"
	"bracket_bot/internal/models"
	"bracket_bot/pkg/logger"
	"bracket_bot/pkg/tracing"
)

// ErrNoCandidate: в полосе страйков нет пута вне денег.
var ErrNoCandidate = errors.New("no cash-secured put candidate")

const (
	defaultMinStrikes  = 10
	contractMultiplier = 100
)

type CSPRequest struct {
	Symbol     string
	MinStrikes int
	Quantity   float64
	Today      time.Time // ноль: сегодня
}

// CSPCandidate: выбранный пут и то, что нужно для лимитного ордера по нему.
type CSPCandidate struct {
	Put          models.OptionQuote
	Expiry       time.Time
	Last         decimal.Decimal
	Mid          decimal.Decimal
	HasMid       bool
	Quantity     float64
	CashRequired decimal.Decimal
	Band         []models.OptionQuote
}

// LimitRequest: продажа выбранного пута по mid.
func (c CSPCandidate) LimitRequest(wait time.Duration) (LimitRequest, error) {
	if !c.HasMid {
		return LimitRequest{}, errors.Errorf("%s: no mid price", c.Put.Contract.Instrument.Key())
	}
	return LimitRequest{
		Instrument: c.Put.Contract.Instrument,
		Action:     models.ActionSell,
		Quantity:   c.Quantity,
		LimitPrice: c.Mid,
		Wait:       wait,
	}, nil
}

// SelectCashSecuredPut: ближайшая пятничная экспирация, полоса страйков вокруг ATM,
// котировки коллов и путов по ней, из них пут вне денег с ближайшим страйком ниже last.
func (e *Engine) SelectCashSecuredPut(ctx context.Context, req CSPRequest) (res CSPCandidate, err error) {
	span, ctx := tracing.StartSpan(ctx, "engine.SelectCashSecuredPut", map[string]any{"symbol": req.Symbol})
	defer func() { tracing.Finish(span, err) }()

	if req.MinStrikes <= 0 {
		req.MinStrikes = defaultMinStrikes
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	if req.Today.IsZero() {
		req.Today = time.Now()
	}

	underlying := models.Instrument{Symbol: req.Symbol, Kind: models.AssetStock, Currency: "USD", Exchange: "SMART"}
	chain, err := e.s.OptionChain(ctx, underlying)
	if err != nil {
		return CSPCandidate{}, err
	}
	if !chain.Last.IsPositive() {
		return CSPCandidate{}, errors.Errorf("%s: no last price, check market data permissions", underlying.Name())
	}
	expiry, ok := helper.NearestFriday(chain.Expirations, req.Today)
	if !ok {
		return CSPCandidate{}, errors.Wrapf(models.ErrResolution, "%s: no expirations", underlying.Name())
	}
	band := helper.StrikeBand(chain.Strikes, chain.Last, req.MinStrikes)
	if len(band) == 0 {
		return CSPCandidate{}, errors.Wrapf(models.ErrResolution, "%s: no strikes", underlying.Name())
	}

	insts := make([]models.Instrument, 0, 2*len(band))
	for _, k := range band {
		for _, right := range []models.Right{models.RightCall, models.RightPut} {
			insts = append(insts, models.Instrument{
				Symbol: underlying.Symbol, Kind: models.AssetOption, Currency: "USD", Exchange: "SMART",
				Strike: k, Expiry: expiry, Right: right,
			})
		}
	}
	quotes, err := e.s.QuoteOptions(ctx, insts)
	if err != nil {
		return CSPCandidate{}, err
	}

	logger.Info("[CSP] %s last=%s expiry=%s страйков=%d котировок=%d",
		underlying.Name(), chain.Last, helper.FormatExpiry(expiry), len(band), len(quotes))
	for _, q := range quotes {
		inst := q.Contract.Instrument
		logger.Debug("[CSP] %s %s%s bid=%s ask=%s iv=%.4f", helper.FormatExpiry(inst.Expiry), inst.Strike, inst.Right, q.Bid, q.Ask, q.IV)
	}

	put, ok := helper.SelectCashSecuredPut(quotes, chain.Last)
	if !ok {
		logger.Warn("[CSP] %s: нет пута вне денег ниже %s", underlying.Name(), chain.Last)
		return CSPCandidate{Expiry: expiry, Last: chain.Last, Band: quotes}, ErrNoCandidate
	}
	mid, hasMid := put.Mid()
	cash := put.Contract.Instrument.Strike.Mul(decimal.NewFromInt(contractMultiplier)).Mul(decimal.NewFromFloat(req.Quantity))
	res = CSPCandidate{
		Put:          put,
		Expiry:       expiry,
		Last:         chain.Last,
		Mid:          mid,
		HasMid:       hasMid,
		Quantity:     req.Quantity,
		CashRequired: cash,
		Band:         quotes,
	}
	logger.Info("[CSP] %s: пут %s @ %s, mid=%s, обеспечение %s",
		underlying.Name(), put.Contract.Instrument.Strike, helper.FormatExpiry(expiry), mid, res.CashRequired.StringFixed(2))
	return res, nil
}
