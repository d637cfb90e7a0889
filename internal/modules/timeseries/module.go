package timeseries

import (
	"go.uber.org/fx"

	"bracket_bot/internal/modules/timeseries/service"
)

func Module() fx.Option {
	return fx.Module("timeseries",
		fx.Provide(
			service.NewStore,
		),
	)
}
