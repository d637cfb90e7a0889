package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"bracket_bot/internal/modules/audit"
	"bracket_bot/internal/modules/config"
	"bracket_bot/internal/modules/connection"
	"bracket_bot/internal/modules/control"
	"bracket_bot/internal/modules/gateway"
	"bracket_bot/internal/modules/health"
	"bracket_bot/internal/modules/notify"
	"bracket_bot/internal/modules/postgres"
	"bracket_bot/internal/modules/strategy"
	"bracket_bot/internal/modules/timeseries"
	"bracket_bot/internal/runner"
	"bracket_bot/internal/runner/engine"
	"bracket_bot/internal/runner/reconcile"
	"bracket_bot/pkg/logger"
	"bracket_bot/pkg/tracing"
)

func initObservability(lc fx.Lifecycle, cfg *config.Config) error {
	logger.SetServiceName(cfg.Service.Name)
	tracing.SetServiceName(cfg.Service.Name)
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Dir: cfg.Log.Dir}); err != nil {
		return err
	}
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			logger.Sync()
			return nil
		},
	})
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return ctx
			},
		),
		config.Module(),
		fx.Invoke(initObservability),
		health.Module(),
		gateway.Module(),
		connection.Module(),
		postgres.Module(),
		audit.Module(),
		notify.Module(),
		timeseries.Module(),
		strategy.Module(),
		engine.Module(),
		reconcile.Module(),
		control.Module(),
		runner.Module(),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}

	<-ctx.Done()
	logger.Info("[MAIN] остановка")
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}
