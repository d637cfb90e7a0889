package runner

import (
	"context"

	"go.uber.org/fx"

	"bracket_bot/internal/modules/config"
	connsvc "bracket_bot/internal/modules/connection/service"
	controlsvc "bracket_bot/internal/modules/control/service"
	healthsvc "bracket_bot/internal/modules/health/service"
	notifysvc "bracket_bot/internal/modules/notify/service"
	strategysvc "bracket_bot/internal/modules/strategy/service"
	tssvc "bracket_bot/internal/modules/timeseries/service"
	"bracket_bot/internal/runner/engine"
	"bracket_bot/internal/runner/reconcile"
)

type params struct {
	fx.In

	Cfg     *config.Config
	Conn    *connsvc.Manager
	History *tssvc.Store
	Control *controlsvc.Store
	Gate    strategysvc.Gate
	Engine  *engine.Engine
	Resync  *reconcile.Service
	Notify  notifysvc.Notifier
	Health  *healthsvc.State
}

func newRunner(p params) *Runner {
	return New(p.Cfg, Deps{
		Conn:    p.Conn,
		History: p.History,
		Control: p.Control,
		Gate:    p.Gate,
		Engine:  p.Engine,
		Resync:  p.Resync,
		Notify:  p.Notify,
		Health:  p.Health,
	})
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			newRunner,
		),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					r.Start(ctx)
					return nil
				},
				OnStop: func(context.Context) error {
					r.Stop()
					return nil
				},
			})
		}),
	)
}
