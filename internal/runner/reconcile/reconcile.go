package reconcile

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"bracket_bot/internal/metrics"
	"bracket_bot/internal/models"
	"bracket_bot/internal/runner/engine"
	"bracket_bot/pkg/logger"
)

type Session interface {
	ConnectWith(ctx context.Context, attempts int, delay time.Duration) error
	QueryOpenOrders(ctx context.Context) ([]models.OpenOrder, error)
	QueryPositions(ctx context.Context) ([]models.PositionRecord, error)
}

type Toucher interface {
	TouchResync(t time.Time)
}

// Snapshot: состояние брокера после сверки.
type Snapshot struct {
	OpenOrders []models.OpenOrder
	Positions  []models.PositionRecord
	Dropped    []int64 // были на учёте, у брокера нет
	Adopted    []int64 // открыты у брокера, взяли на учёт
	At         time.Time
}

// Service сверяет локальный учёт ордеров с брокером. У брокера ничего не меняет.
type Service struct {
	s      Session
	reg    *engine.Registry
	health Toucher
}

func NewService(s Session, reg *engine.Registry, health Toucher) *Service {
	return &Service{s: s, reg: reg, health: health}
}

func (svc *Service) Resync(ctx context.Context, maxRetries int, retryDelay time.Duration) (snap Snapshot, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.ReconcileTotal.WithLabelValues(result).Inc()
	}()

	if err = svc.s.ConnectWith(ctx, maxRetries, retryDelay); err != nil {
		logger.Error("[RESYNC] нет соединения: %v", err)
		return Snapshot{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.OpenOrders, err = svc.s.QueryOpenOrders(gctx)
		return errors.Wrap(err, "open orders")
	})
	g.Go(func() (err error) {
		snap.Positions, err = svc.s.QueryPositions(gctx)
		return errors.Wrap(err, "positions")
	})
	if err = g.Wait(); err != nil {
		logger.Error("[RESYNC] %v", err)
		return Snapshot{}, err
	}

	open := make(map[int64]models.OpenOrder, len(snap.OpenOrders))
	for _, o := range snap.OpenOrders {
		if !o.Status.IsTerminal() {
			open[o.OrderID] = o
		}
	}

	for _, id := range svc.reg.TrackedIDs() {
		if _, ok := open[id]; !ok {
			svc.reg.Retire(id)
			snap.Dropped = append(snap.Dropped, id)
		}
	}
	for _, o := range snap.OpenOrders {
		if _, ok := open[o.OrderID]; ok && svc.reg.Adopt(o) {
			snap.Adopted = append(snap.Adopted, o.OrderID)
		}
	}

	snap.At = time.Now()
	if svc.health != nil {
		svc.health.TouchResync(snap.At)
	}
	logger.Info("[RESYNC] открыто %d, позиций %d, снято с учёта %v, принято %v",
		len(snap.OpenOrders), len(snap.Positions), snap.Dropped, snap.Adopted)
	return snap, nil
}
