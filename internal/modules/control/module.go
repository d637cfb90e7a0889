package control

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"bracket_bot/internal/modules/config"
	"bracket_bot/internal/modules/control/service"
	tssvc "bracket_bot/internal/modules/timeseries/service"
	"bracket_bot/pkg/logger"
)

// newStore сбрасывает флаги до того, как их прочитает драйвер.
func newStore(cfg *config.Config) (*service.Store, error) {
	st := service.NewStore(cfg)
	if err := st.Reset(); err != nil {
		return nil, err
	}
	logger.Info("[CONTROL] %s: все символы выключены", cfg.Storage.ControlFile)
	return st, nil
}

func newAPI(st *service.Store, history *tssvc.Store) *service.API {
	return service.NewAPI(st, history)
}

func runHTTP(lc fx.Lifecycle, cfg *config.Config, api *service.API) {
	addr := fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.PublicPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(nil),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			logger.Info("[CONTROL] слушаем %s", addr)
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("control",
		fx.Provide(
			newStore,
			newAPI,
		),
		fx.Invoke(runHTTP),
	)
}
