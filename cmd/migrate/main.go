// migrate: создаёт таблицу внешнего журнала ордеров в Postgres.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pkg/errors"

	auditsvc "bracket_bot/internal/modules/audit/service"
	"bracket_bot/internal/modules/config"
	"bracket_bot/pkg/db"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.DB == "" {
		log.Fatal("db_dsn is empty (DB_DSN)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB, MaxConns: 1})
	if err != nil {
		log.Fatal(errors.Wrap(err, "connect"))
	}
	defer pool.Close()

	if err := auditsvc.NewPgSink(db.NewPgTxManager(pool)).Migrate(ctx); err != nil {
		log.Fatal(errors.Wrap(err, "migrate order_audit"))
	}
	fmt.Println("done")
}
