package reconcile

import (
	"go.uber.org/fx"

	connsvc "bracket_bot/internal/modules/connection/service"
	healthsvc "bracket_bot/internal/modules/health/service"
	"bracket_bot/internal/runner/engine"
)

func Module() fx.Option {
	return fx.Module("reconcile",
		fx.Provide(
			func(m *connsvc.Manager, reg *engine.Registry, st *healthsvc.State) *Service {
				return NewService(m, reg, st)
			},
		),
	)
}
