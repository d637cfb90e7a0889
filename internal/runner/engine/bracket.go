package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"bracket_bot/internal/helper"
	"bracket_bot/internal/metrics"
	"bracket_bot/internal/models"
	"bracket_bot/pkg/logger"
	"bracket_bot/pkg/tracing"
)

type BracketRequest struct {
	Instrument models.Instrument
	Action     models.Action
	Quantity   float64

	// в пипсах от фактической цены входа
	TargetOffset float64
	StopOffset   float64

	FillTimeout     time.Duration
	WatchdogTimeout time.Duration
	FallbackTimeout time.Duration
}

type Outcome string

const (
	OutcomePlaced         Outcome = "placed"
	OutcomeAlreadyExposed Outcome = "already_exposed"
	OutcomeNoFill         Outcome = "no_fill"
	OutcomeFailed         Outcome = "failed"
)

type BracketResult struct {
	Outcome   Outcome
	Reason    string
	Group     models.BracketGroup
	Watchdogs []TaskID
	KillTask  TaskID
}

func (r BracketRequest) validate() error {
	switch {
	case r.Quantity <= 0:
		return errors.New("quantity must be positive")
	case r.Action != models.ActionBuy && r.Action != models.ActionSell:
		return errors.Errorf("bad action %q", r.Action)
	case r.TargetOffset <= 0 || r.StopOffset <= 0:
		return errors.New("offsets must be positive")
	case r.FillTimeout <= 0 || r.FallbackTimeout <= 0:
		return errors.New("timeouts must be positive")
	}
	return nil
}

// PlaceBracketOrder: маркет-вход, ждём fill, ставим TP/SL одной OCA-группой,
// вешаем watchdog на каждую ногу и kill switch на группу.
func (e *Engine) PlaceBracketOrder(ctx context.Context, req BracketRequest) (res BracketResult, err error) {
	span, ctx := tracing.StartSpan(ctx, "engine.PlaceBracketOrder", map[string]any{
		"symbol": req.Instrument.Name(),
		"action": string(req.Action),
	})
	defer func() {
		span.SetTag("outcome", string(res.Outcome))
		tracing.Finish(span, err)
		if res.Outcome != "" {
			metrics.BracketsTotal.WithLabelValues(req.Instrument.Name(), string(res.Outcome)).Inc()
		}
	}()

	if err = req.validate(); err != nil {
		return BracketResult{Outcome: OutcomeFailed}, errors.Wrap(err, "bracket request")
	}

	contract, err := e.s.ResolveInstrument(ctx, req.Instrument)
	if err != nil {
		return BracketResult{Outcome: OutcomeFailed}, err
	}

	// проверка экспозиции и все сабмиты: под локом инструмента
	unlock := e.locks.Lock(contract.Key())
	defer unlock()

	exposed, why, err := e.exposed(ctx, contract)
	if err != nil {
		return BracketResult{Outcome: OutcomeFailed}, err
	}
	if exposed {
		logger.Info("[BRACKET] %s: уже есть экспозиция (%s), пропуск", req.Instrument.Name(), why)
		return BracketResult{Outcome: OutcomeAlreadyExposed, Reason: why}, nil
	}

	// 1) вход
	entry, err := e.submit(ctx, contract, models.OrderRequest{
		Action:   req.Action,
		Quantity: req.Quantity,
		Body:     models.MarketOrder{},
	})
	if err != nil {
		return BracketResult{Outcome: OutcomeFailed}, err
	}

	// 2) ждём исполнение
	fill, err := e.waitForFill(ctx, entry, time.Now().Add(req.FillTimeout))
	if errors.Is(err, models.ErrExecutionTimeout) {
		fill, err = e.abandonEntry(ctx, entry)
	}
	if err != nil {
		if errors.Is(err, models.ErrExecutionTimeout) {
			return BracketResult{Outcome: OutcomeNoFill, Reason: "entry not filled"}, err
		}
		return BracketResult{Outcome: OutcomeFailed}, err
	}

	if fill.qty < entry.Quantity {
		// частичное исполнение: остаток снимаем, брекет на исполненное
		logger.Warn("[BRACKET] %s: исполнено %.0f из %.0f, остаток отменяем",
			req.Instrument.Name(), fill.qty, entry.Quantity)
		_ = e.cancelQuiet(ctx, entry)
	}
	e.reg.SetStatus(entry.ID, models.StatusFilled)
	entry.Status = models.StatusFilled

	// 3) цены от фактического fill
	pip := helper.PipSize(contract.Instrument)
	take, stop := BracketPrices(req.Action, fill.avg, req.TargetOffset, req.StopOffset, pip)

	// 4) TP + SL одной OCA-группой
	oca := e.newOcaID()
	exit := req.Action.Opposite()

	tp, err := e.submit(ctx, contract, models.OrderRequest{
		Action: exit, Quantity: fill.qty, Body: models.LimitOrder{LimitPrice: take}, OcaGroup: oca,
	})
	if err != nil {
		e.unprotected(req.Instrument.Name(), entry, err)
		return BracketResult{Outcome: OutcomeFailed}, err
	}
	sl, err := e.submit(ctx, contract, models.OrderRequest{
		Action: exit, Quantity: fill.qty, Body: models.StopOrder{StopPrice: stop}, OcaGroup: oca,
	})
	if err != nil {
		_ = e.cancelQuiet(ctx, tp)
		e.unprotected(req.Instrument.Name(), entry, err)
		return BracketResult{Outcome: OutcomeFailed}, err
	}

	group := models.BracketGroup{
		Contract:   contract,
		Action:     req.Action,
		Entry:      entry,
		TakeProfit: tp,
		StopLoss:   sl,
		OcaGroup:   oca,
		FilledQty:  fill.qty,
		FillPrice:  fill.avg,
		TakePrice:  take,
		StopPrice:  stop,
		State:      models.BracketPending,
	}
	logger.Info("[BRACKET] %s %s %.0f @ %s → TP %s / SL %s oca=%s",
		req.Instrument.Name(), req.Action, fill.qty, fill.avg, take, stop, oca)

	// 5) журнал позиции и сигнала
	e.recordEntry(group, fill)

	// 6) watchdog на каждую ногу, 7) kill switch на группу.
	// Регистрируем под e.mu: таймер не увидит брекет раньше, чем он взведён.
	active := &activeBracket{group: group}
	e.mu.Lock()
	if req.WatchdogTimeout > 0 {
		for _, leg := range []models.Order{tp, sl} {
			id := e.sched.After("watchdog:"+string(leg.Body.Type()), req.WatchdogTimeout, func(ctx context.Context) {
				e.watchdog(ctx, group, leg)
			})
			active.watchdogs = append(active.watchdogs, id)
		}
	}
	active.killTask = e.sched.After("killswitch:"+oca, req.FallbackTimeout, func(ctx context.Context) {
		e.killSwitch(ctx, oca, 0)
	})
	active.group.State = models.BracketArmed
	active.group.ArmedAt = time.Now()
	e.brackets[oca] = active
	res = BracketResult{
		Outcome:   OutcomePlaced,
		Group:     active.group,
		Watchdogs: active.watchdogs,
		KillTask:  active.killTask,
	}
	e.mu.Unlock()

	return res, nil
}

// waitForFill опрашивает исполнения до deadline.
func (e *Engine) waitForFill(ctx context.Context, entry models.Order, deadline time.Time) (fillSummary, error) {
	for {
		fills, err := e.s.PollExecutions(ctx)
		if err != nil {
			return fillSummary{}, err
		}
		sum := summarize(fills, entry.ID)
		if sum.qty >= entry.Quantity {
			return sum, nil
		}

		left := time.Until(deadline)
		if left <= 0 {
			if sum.qty > 0 {
				return sum, nil
			}
			return fillSummary{}, errors.Wrapf(models.ErrExecutionTimeout, "order %d", entry.ID)
		}
		if err := e.sleep(ctx, min(e.poll, left)); err != nil {
			return fillSummary{}, err
		}
	}
}

// abandonEntry: вход не исполнился вовремя, отменяем его и ждём одно окно.
// Если за это окно всё-таки пришёл fill: продолжаем с ним.
func (e *Engine) abandonEntry(ctx context.Context, entry models.Order) (fillSummary, error) {
	logger.Warn("[BRACKET] %s: нет исполнения входа id=%d, отменяем", entry.Instrument.Name(), entry.ID)
	_ = e.cancelQuiet(ctx, entry)

	if err := e.sleep(ctx, e.poll); err != nil {
		return fillSummary{}, err
	}

	fills, err := e.s.PollExecutions(ctx)
	if err != nil {
		// судьбу входа выяснит реконсиляция
		return fillSummary{}, err
	}
	if sum := summarize(fills, entry.ID); sum.qty > 0 {
		logger.Warn("[BRACKET] %s: поздний fill входа id=%d %.0f @ %s", entry.Instrument.Name(), entry.ID, sum.qty, sum.avg)
		return sum, nil
	}

	e.reg.SetStatus(entry.ID, models.StatusCancelled)
	return fillSummary{}, errors.Wrapf(models.ErrExecutionTimeout, "order %d cancelled", entry.ID)
}

func (e *Engine) unprotected(symbol string, entry models.Order, err error) {
	logger.Critical("[BRACKET] %s: вход id=%d исполнен, но TP/SL не выставлены: %v", symbol, entry.ID, err)
	if e.notify != nil {
		e.notify.Sendf("🚨 [%s] позиция без защиты: вход %d исполнен, TP/SL не выставлены (%v)", symbol, entry.ID, err)
	}
}

func (e *Engine) recordEntry(g models.BracketGroup, fill fillSummary) {
	if e.journal == nil {
		return
	}
	at := fill.at.Time
	if at.IsZero() {
		at = time.Now()
	}
	price, _ := g.FillPrice.Float64()

	if err := e.journal.AddPosition(models.PositionJournalEntry{
		EntryDateTime: models.FormatJournalTime(at),
		SymbolName:    g.Contract.Instrument.Name(),
		OrderID:       g.Entry.ID,
		Qty:           g.FilledQty,
		EntryPrice:    price,
	}); err != nil {
		metrics.AuditErrors.WithLabelValues("positions").Inc()
		logger.Error("[AUDIT] позиция %s: %v", g.Contract.Instrument.Name(), errors.Wrap(models.ErrAuditSink, err.Error()))
	}
	if err := e.journal.AddSignal(models.SignalAuditEntry{
		Symbol:    g.Contract.Instrument.Name(),
		DateTime:  models.FormatJournalTime(at),
		Direction: string(g.Action),
		Price:     price,
	}); err != nil {
		metrics.AuditErrors.WithLabelValues("signals").Inc()
		logger.Error("[AUDIT] сигнал %s: %v", g.Contract.Instrument.Name(), errors.Wrap(models.ErrAuditSink, err.Error()))
	}
}

// watchdog: нога всё ещё PreSubmitted, только предупреждаем.
func (e *Engine) watchdog(ctx context.Context, g models.BracketGroup, leg models.Order) {
	st, err := e.refresh(ctx, leg)
	if err != nil {
		logger.Warn("[WATCHDOG] %s id=%d: статус не получен: %v", g.Contract.Instrument.Name(), leg.ID, err)
		return
	}
	if st.Status != models.StatusPreSubmitted {
		return
	}
	logger.Warn("[WATCHDOG] %s %s id=%d всё ещё PreSubmitted", g.Contract.Instrument.Name(), leg.Body.Type(), leg.ID)
	if e.notify != nil {
		e.notify.Sendf("⚠️ [%s] %s нога %d всё ещё PreSubmitted", g.Contract.Instrument.Name(), leg.Body.Type(), leg.ID)
	}
}
