package connection

import (
	"context"

	"go.uber.org/fx"

	"bracket_bot/internal/modules/connection/service"
	healthsvc "bracket_bot/internal/modules/health/service"
	"bracket_bot/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("connection",
		fx.Provide(
			func(st *healthsvc.State) service.HealthReporter { return st },
			service.NewManager,
		),
		fx.Invoke(func(lc fx.Lifecycle, m *service.Manager) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					if err := m.Disconnect(); err != nil {
						logger.Error("[CONN] disconnect: %v", err)
					}
					return nil
				},
			})
		}),
	)
}
