package service

import (
	"context"

	"github.com/pkg/errors"

	"bracket_bot/internal/models"
	"bracket_bot/pkg/db"
)

const createOrderAudit = `
CREATE TABLE IF NOT EXISTS order_audit (
	id               BIGSERIAL PRIMARY KEY,
	ts               TIMESTAMPTZ NOT NULL,
	ticker           TEXT NOT NULL,
	expiry           TEXT NOT NULL DEFAULT '',
	strike           TEXT NOT NULL DEFAULT '',
	premium          TEXT NOT NULL DEFAULT '',
	order_status     TEXT NOT NULL,
	client_id        INTEGER NOT NULL,
	perm_id          BIGINT NOT NULL,
	reason_cancelled TEXT NOT NULL DEFAULT ''
)`

const insertOrderAudit = `
INSERT INTO order_audit (ts, ticker, expiry, strike, premium, order_status, client_id, perm_id, reason_cancelled)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// PgSink: внешний аудит в postgres.
type PgSink struct {
	tx db.TxManager
}

func NewPgSink(tx db.TxManager) *PgSink {
	return &PgSink{tx: tx}
}

func (s *PgSink) Name() string { return "postgres" }

// Migrate создаёт таблицу, если её нет.
func (s *PgSink) Migrate(ctx context.Context) error {
	return s.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, createOrderAudit)
		return err
	})
}

func (s *PgSink) Append(ctx context.Context, row models.OrderAuditRow) error {
	err := s.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertOrderAudit,
			row.Timestamp, row.Ticker, row.Expiry, row.Strike, row.Premium,
			string(row.OrderStatus), row.ClientID, row.PermID, row.ReasonCancelled,
		)
		return err
	})
	return errors.Wrap(err, "insert order_audit")
}
