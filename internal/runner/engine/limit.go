package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bracket_bot/internal/helper"
	"bracket_bot/internal/models"
	"bracket_bot/pkg/logger"
	"bracket_bot/pkg/tracing"
)

type LimitRequest struct {
	Instrument models.Instrument
	Action     models.Action
	Quantity   float64
	LimitPrice decimal.Decimal
	Wait       time.Duration
}

type LimitResult struct {
	OrderID      int64
	PermID       int64
	Status       models.OrderStatus
	FilledQty    float64
	AvgFillPrice decimal.Decimal
	Reason       string
}

func (r LimitResult) Filled() bool { return r.Status == models.StatusFilled }

// PlaceLimitAndAutoCancel: один лимитный ордер без OCA. Ждём Wait, если не исполнился, отменяем.
// Строка в журнал ордеров пишется при любом исходе, кроме ошибки резолва.
func (e *Engine) PlaceLimitAndAutoCancel(ctx context.Context, req LimitRequest) (res LimitResult, err error) {
	span, ctx := tracing.StartSpan(ctx, "engine.PlaceLimitAndAutoCancel", map[string]any{
		"symbol": req.Instrument.Name(),
		"action": string(req.Action),
	})
	defer func() { tracing.Finish(span, err) }()

	if req.Quantity <= 0 || !req.LimitPrice.IsPositive() {
		return LimitResult{}, errors.Errorf("limit request: qty=%v price=%s", req.Quantity, req.LimitPrice)
	}
	if req.Instrument.IsOption() && !req.Instrument.Right.Valid() {
		return LimitResult{}, errors.Errorf("limit request: option right %q", req.Instrument.Right)
	}

	inst := req.Instrument
	if inst.IsOption() && !inst.Expiry.IsZero() {
		inst.Expiry = helper.NormalizeExpiry(inst.Expiry)
	}

	contract, err := e.s.ResolveInstrument(ctx, inst)
	if err != nil {
		logger.Error("[LIMIT] %s: инструмент не найден: %v", inst.Name(), err)
		return LimitResult{}, err
	}

	unlock := e.locks.Lock(contract.Key())
	defer unlock()

	row := models.OrderAuditRow{
		Ticker:   contract.Instrument.Name(),
		Strike:   contract.Instrument.Strike.String(),
		Premium:  req.LimitPrice.String(),
		ClientID: e.clientID,
	}
	if !contract.Instrument.Expiry.IsZero() {
		row.Expiry = helper.FormatExpiry(contract.Instrument.Expiry)
	}
	defer func() {
		row.Timestamp = time.Now()
		row.OrderStatus = res.Status
		row.PermID = res.PermID
		row.ReasonCancelled = res.Reason
		if e.audit == nil {
			return
		}
		// ошибки журнала торговлю не ломают
		_ = e.audit.Record(context.WithoutCancel(ctx), row)
	}()

	order, err := e.submit(ctx, contract, models.OrderRequest{
		Action:   req.Action,
		Quantity: req.Quantity,
		Body:     models.LimitOrder{LimitPrice: req.LimitPrice},
	})
	if err != nil {
		res = LimitResult{Status: models.StatusInactive, Reason: "Submit error: " + err.Error()}
		return res, err
	}
	res = LimitResult{OrderID: order.ID, PermID: order.PermID, Status: order.Status}

	st, err := e.waitForStatus(ctx, order, time.Now().Add(req.Wait))
	if err != nil {
		// статус не знаем, дальше разберётся реконсиляция
		return res, err
	}
	res.apply(st)
	if st.Status == models.StatusFilled {
		logger.Info("[LIMIT] %s %s %.0f @ %s исполнен id=%d", contract.Instrument.Name(), req.Action, req.Quantity, st.AvgFillPrice, order.ID)
		return res, nil
	}

	res.Reason = models.ReasonCancelledByTimeout
	if cerr := e.cancelQuiet(ctx, order); cerr != nil {
		res.Reason = models.ReasonCancelErrorPrefix + cerr.Error()
	}
	_ = e.sleep(ctx, e.poll)
	if st, err := e.refresh(ctx, order); err == nil {
		res.apply(st)
	}
	if res.Status == models.StatusFilled {
		// исполнился, пока отменяли
		res.Reason = ""
	}
	logger.Info("[LIMIT] %s id=%d: %s (%s)", contract.Instrument.Name(), order.ID, res.Status, res.Reason)
	return res, nil
}

func (r *LimitResult) apply(st models.OrderState) {
	if st.Status != "" {
		r.Status = st.Status
	}
	if st.PermID != 0 {
		r.PermID = st.PermID
	}
	r.FilledQty = st.Filled
	r.AvgFillPrice = st.AvgFillPrice
}

// waitForStatus опрашивает статус до исполнения или deadline.
func (e *Engine) waitForStatus(ctx context.Context, o models.Order, deadline time.Time) (models.OrderState, error) {
	for {
		st, err := e.refresh(ctx, o)
		if err != nil {
			return st, err
		}
		if st.Status.IsTerminal() {
			return st, nil
		}
		left := time.Until(deadline)
		if left <= 0 {
			return st, nil
		}
		if err := e.sleep(ctx, min(e.poll, left)); err != nil {
			return st, err
		}
	}
}
