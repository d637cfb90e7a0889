package service

import (
	"fmt"

	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/config"
)

// Gate решает BUY/SELL/HOLD по серии. Движок реагирует только на BUY/SELL.
type Gate interface {
	Name() string
	Evaluate(symbol string, series models.SymbolSeries) models.Decision
}

const (
	GateMA4      = "ma4"
	GateSMA      = "sma"
	GateDonchian = "donchian"
)

func NewGate(cfg *config.Config) (Gate, error) {
	switch cfg.Trading.Strategy {
	case "", GateMA4:
		return NewCrossover(DefaultCrossoverConfig()), nil
	case GateSMA:
		return NewSMACross(5, 20), nil
	case GateDonchian:
		return NewDonchian(20, 50), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Trading.Strategy)
	}
}
