package service

import (
	"bracket_bot/internal/models"
)

// Donchian: пробой канала последних Period свечей в сторону EMA тренда.
type Donchian struct {
	period   int
	trendEMA int
}

func NewDonchian(period, trendEMA int) *Donchian {
	if period <= 0 {
		period = 20
	}
	if trendEMA <= 0 {
		trendEMA = 50
	}
	return &Donchian{period: period, trendEMA: trendEMA}
}

func (d *Donchian) Name() string { return GateDonchian }

func (d *Donchian) Evaluate(symbol string, series models.SymbolSeries) models.Decision {
	n := len(series)
	if n < d.period+1 || n < d.trendEMA {
		return models.DecisionHold
	}

	ema := newEMA(d.trendEMA)
	for _, b := range series {
		ema.Update(b.Close)
	}
	if !ema.Ready() {
		return models.DecisionHold
	}

	// канал без последней свечи
	window := series[n-1-d.period : n-1]
	hi, lo := window[0].High, window[0].Low
	for _, b := range window[1:] {
		hi = max(hi, b.High)
		lo = min(lo, b.Low)
	}

	last := series[n-1].Close
	switch {
	case last > hi && last > ema.Value():
		return models.DecisionBuy
	case last < lo && last < ema.Value():
		return models.DecisionSell
	default:
		return models.DecisionHold
	}
}
