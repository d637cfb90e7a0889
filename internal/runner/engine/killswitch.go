package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"bracket_bot/internal/metrics"
	"bracket_bot/internal/models"
	"bracket_bot/pkg/logger"
)

const killSwitchRetries = 3

// exclusive: одна нога Filled, другая Cancelled.
func exclusive(a, b models.OrderStatus) bool {
	return (a == models.StatusFilled && b == models.StatusCancelled) ||
		(a == models.StatusCancelled && b == models.StatusFilled)
}

// killSwitch проверяет OCA-группу по истечении fallback-окна.
// Ожидаемая картина: закрываем брекет; иначе снимаем ноги и выравниваем позицию рынком.
func (e *Engine) killSwitch(ctx context.Context, oca string, attempt int) {
	active, ok := e.bracket(oca)
	if !ok {
		return
	}
	g := active.group
	symbol := g.Contract.Instrument.Name()

	unlock := e.locks.Lock(g.Contract.Key())
	defer unlock()

	tpSt, err1 := e.refresh(ctx, g.TakeProfit)
	slSt, err2 := e.refresh(ctx, g.StopLoss)
	if err := errors.Wrap(firstErr(err1, err2), "leg state"); err != nil {
		if attempt+1 >= killSwitchRetries {
			logger.Critical("[KILL] %s oca=%s: статусы ног недоступны после %d попыток: %v", symbol, oca, attempt+1, err)
			if e.notify != nil {
				e.notify.Sendf("🚨 [%s] kill switch не смог проверить OCA %s: %v", symbol, oca, err)
			}
			return
		}
		logger.Warn("[KILL] %s oca=%s: статусы ног недоступны, повтор: %v", symbol, oca, err)
		e.sched.After("killswitch-retry:"+oca, 10*e.poll, func(ctx context.Context) {
			e.killSwitch(ctx, oca, attempt+1)
		})
		return
	}

	for _, id := range active.watchdogs {
		e.sched.Cancel(id)
	}

	if exclusive(tpSt.Status, slSt.Status) {
		e.resolve(g, tpSt, slSt)
		return
	}

	e.flatten(ctx, g, tpSt, slSt)
}

func (e *Engine) resolve(g models.BracketGroup, tpSt, slSt models.OrderState) {
	exit, leg := tpSt, "TP"
	if slSt.Status == models.StatusFilled {
		exit, leg = slSt, "SL"
	}
	logger.Info("[KILL] %s oca=%s: OCA отработала штатно (%s @ %s)", g.Contract.Instrument.Name(), g.OcaGroup, leg, exit.AvgFillPrice)

	if e.journal != nil {
		px, _ := exit.AvgFillPrice.Float64()
		if _, err := e.journal.ClosePosition(g.Entry.ID, time.Now(), px); err != nil {
			metrics.AuditErrors.WithLabelValues("positions").Inc()
			logger.Error("[AUDIT] закрытие позиции %d: %v", g.Entry.ID, err)
		}
	}
	e.setBracketState(g.OcaGroup, models.BracketResolved)
}

// flatten при OcaDivergence: отмена обеих ног и рыночный ордер на остаток позиции.
func (e *Engine) flatten(ctx context.Context, g models.BracketGroup, tpSt, slSt models.OrderState) {
	symbol := g.Contract.Instrument.Name()
	logger.Critical("[KILL] %s oca=%s: %v (TP=%s, SL=%s), выравниваем позицию",
		symbol, g.OcaGroup, models.ErrOcaDivergence, tpSt.Status, slSt.Status)
	metrics.KillSwitchTotal.WithLabelValues(symbol).Inc()

	legs := []models.Order{g.TakeProfit, g.StopLoss}
	states := []models.OrderState{tpSt, slSt}
	for i, leg := range legs {
		if !states[i].Status.IsTerminal() {
			_ = e.cancelQuiet(ctx, leg)
		}
	}
	// одно окно на подтверждение отмены, дальше не ждём
	_ = e.sleep(ctx, e.poll)

	var legsFilled float64
	for i, leg := range legs {
		st, err := e.refresh(ctx, leg)
		if err != nil {
			st = states[i]
		}
		legsFilled += st.Filled
		if !st.Status.IsTerminal() {
			e.reg.SetStatus(leg.ID, models.StatusCancelled)
		}
	}

	// остаток = исполненный вход минус то, что закрыли ноги
	net := g.FilledQty - legsFilled
	action := g.Action.Opposite()
	if net < 0 {
		action, net = g.Action, -net
	}

	if net > 0 {
		flat, err := e.submit(ctx, g.Contract, models.OrderRequest{
			Action: action, Quantity: net, Body: models.MarketOrder{},
		})
		if err != nil {
			logger.Critical("[KILL] %s: выравнивающий ордер не отправлен: %v", symbol, err)
			if e.notify != nil {
				e.notify.Sendf("🚨 [%s] kill switch: выравнивающий ордер %s %.0f не отправлен: %v", symbol, action, net, err)
			}
			e.setBracketState(g.OcaGroup, models.BracketFlattened)
			return
		}
		_ = e.sleep(ctx, e.poll)
		if st, err := e.refresh(ctx, flat); err == nil && st.Status == models.StatusFilled && e.journal != nil {
			px, _ := st.AvgFillPrice.Float64()
			_, _ = e.journal.ClosePosition(g.Entry.ID, time.Now(), px)
		}
	}

	if e.notify != nil {
		e.notify.Sendf("🚨 [%s] kill switch: OCA %s не сработала (TP=%s, SL=%s), отправлен %s %.0f",
			symbol, g.OcaGroup, tpSt.Status, slSt.Status, action, net)
	}
	e.setBracketState(g.OcaGroup, models.BracketFlattened)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
