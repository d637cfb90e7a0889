package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"bracket_bot/internal/modules/config"
	"bracket_bot/pkg/db"
	"bracket_bot/pkg/logger"
)

// Module отдаёт *db.PgTxManager; без db_dsn: nil, внешний аудит выключен.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					return nil, nil
				}
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN:      cfg.DB,
					MaxConns: 4,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					// аудит не критичен для торговли
					logger.Error("[PG] ping: %v, внешний аудит выключен", err)
					poolMaster.Close()
					return nil, nil
				}

				m := db.NewPgTxManager(poolMaster)
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						m.Close()
						return nil
					},
				})
				return m, nil
			},
		),
	)
}
