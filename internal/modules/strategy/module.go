package strategy

import (
	"go.uber.org/fx"

	"bracket_bot/internal/modules/strategy/service"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			service.NewGate, // service.Gate
		),
	)
}
