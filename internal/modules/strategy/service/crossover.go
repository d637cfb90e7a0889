package service

import (
	"bracket_bot/internal/models"
)

type CrossoverConfig struct {
	SlowEMA  int // ma1
	SlowSMA  int // ma2
	FastEMA  int // ma3
	TrendEMA int // ma4
}

func DefaultCrossoverConfig() CrossoverConfig {
	return CrossoverConfig{SlowEMA: 110, SlowSMA: 110, FastEMA: 18, TrendEMA: 45}
}

// Crossover: пересечение быстрой EMA и EMA тренда с фильтром по медленным средним.
// BUY: fast пересекает trend снизу вверх, slowEMA < slowSMA и trend выше обеих медленных.
// SELL: зеркально.
type Crossover struct {
	cfg CrossoverConfig
}

func NewCrossover(cfg CrossoverConfig) *Crossover {
	return &Crossover{cfg: cfg}
}

func (c *Crossover) Name() string { return GateMA4 }

type maPoint struct {
	ma1, ma2, ma3, ma4 float64
	ok                 bool
}

func (c *Crossover) Evaluate(symbol string, series models.SymbolSeries) models.Decision {
	ma1 := newEMA(c.cfg.SlowEMA)
	ma2 := newSMA(c.cfg.SlowSMA)
	ma3 := newEMA(c.cfg.FastEMA)
	ma4 := newEMA(c.cfg.TrendEMA)

	var prev, cur maPoint
	for _, b := range series {
		ma1.Update(b.Close)
		ma2.Update(b.Close)
		ma3.Update(b.Close)
		ma4.Update(b.Close)

		prev = cur
		cur = maPoint{
			ma1: ma1.Value(), ma2: ma2.Value(), ma3: ma3.Value(), ma4: ma4.Value(),
			ok: ma1.Ready() && ma2.Ready() && ma3.Ready() && ma4.Ready(),
		}
	}
	// нужны две готовые точки подряд
	if !cur.ok || !prev.ok {
		return models.DecisionHold
	}

	crossover := cur.ma3 > cur.ma4 && prev.ma3 <= prev.ma4
	crossunder := cur.ma3 < cur.ma4 && prev.ma3 >= prev.ma4

	switch {
	case crossover && cur.ma1 < cur.ma2 && cur.ma4 > max(cur.ma1, cur.ma2):
		return models.DecisionBuy
	case crossunder && cur.ma1 > cur.ma2 && cur.ma4 < min(cur.ma1, cur.ma2):
		return models.DecisionSell
	}
	return models.DecisionHold
}

// SMACross, простой вариант. Короткая SMA выше длинной = BUY, ниже = SELL.
type SMACross struct {
	short, long int
}

func NewSMACross(short, long int) *SMACross {
	return &SMACross{short: short, long: long}
}

func (s *SMACross) Name() string { return GateSMA }

func (s *SMACross) Evaluate(symbol string, series models.SymbolSeries) models.Decision {
	fast := newSMA(s.short)
	slow := newSMA(s.long)
	for _, b := range series {
		fast.Update(b.Close)
		slow.Update(b.Close)
	}
	if !fast.Ready() || !slow.Ready() {
		return models.DecisionHold
	}
	switch {
	case fast.Value() > slow.Value():
		return models.DecisionBuy
	case fast.Value() < slow.Value():
		return models.DecisionSell
	}
	return models.DecisionHold
}
