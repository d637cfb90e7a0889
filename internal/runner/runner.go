package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"bracket_bot/internal/helper"
	"bracket_bot/internal/metrics"
	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/config"
	"bracket_bot/internal/runner/engine"
	"bracket_bot/internal/runner/reconcile"
	"bracket_bot/pkg/logger"
	"bracket_bot/pkg/tracing"
)

type Connection interface {
	IsConnected() bool
	ResolveInstrument(ctx context.Context, inst models.Instrument) (models.Contract, error)
	FetchBars(ctx context.Context, contract models.Contract, window, barSize string) ([]models.Bar, error)
}

type History interface {
	Update(symbol string, newBars []models.Bar) ([]models.Bar, models.SymbolSeries, error)
	Annotate(symbol string, bar models.Bar, status string) error
}

type Control interface {
	Load() (map[string]bool, error)
}

type Gate interface {
	Name() string
	Evaluate(symbol string, series models.SymbolSeries) models.Decision
}

type Placer interface {
	PlaceBracketOrder(ctx context.Context, req engine.BracketRequest) (engine.BracketResult, error)
	Registry() *engine.Registry
	Brackets() []models.BracketGroup
}

type Resyncer interface {
	Resync(ctx context.Context, maxRetries int, retryDelay time.Duration) (reconcile.Snapshot, error)
}

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
	Confirm(ctx context.Context, prompt string, timeout time.Duration) bool
}

type Health interface {
	SetReady(v bool)
	TouchCycle(t time.Time)
	SetHalted(n int)
}

// Runner: цикл по включённым символам (свечи, сигнал, брекет).
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cfg       config.TradingConfig
	reconcile config.ReconcileConfig

	conn    Connection
	history History
	control Control
	gate    Gate
	eng     Placer
	resync  Resyncer
	n       Notifier
	health  Health

	// после обрыва новые ордера только после сверки
	needResync atomic.Bool

	mu        sync.Mutex
	loaded    map[string]bool      // первичная история загружена
	evaluated map[string]time.Time // время последней оценённой свечи
	contracts map[string]models.Contract
	halted    map[string]bool
}

type Deps struct {
	Conn    Connection
	History History
	Control Control
	Gate    Gate
	Engine  Placer
	Resync  Resyncer
	Notify  Notifier
	Health  Health
}

func New(cfg *config.Config, d Deps) *Runner {
	return &Runner{
		cfg:       cfg.Trading,
		reconcile: cfg.Reconcile,
		conn:      d.Conn,
		history:   d.History,
		control:   d.Control,
		gate:      d.Gate,
		eng:       d.Engine,
		resync:    d.Resync,
		n:         d.Notify,
		health:    d.Health,
		loaded:    make(map[string]bool),
		evaluated: make(map[string]time.Time),
		contracts: make(map[string]models.Contract),
		halted:    make(map[string]bool),
	}
}

// Start: подключение, сверка и цикл по слотам :00/:30. Не блокирует.
func (r *Runner) Start(parent context.Context) {
	r.ctx, r.cancel = context.WithCancel(parent)
	r.needResync.Store(true)

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.loop(r.ctx)
	}()
	go func() {
		defer r.wg.Done()
		r.healthLoop(r.ctx)
	}()
	logger.Info("[RUNNER] ▶️ старт, стратегия %s, цикл %s", r.gate.Name(), r.cfg.CycleInterval)
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.health.SetReady(false)
}

func (r *Runner) loop(ctx context.Context) {
	for {
		wait := helper.UntilNextSlot(time.Now(), r.cfg.CycleInterval)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if err := r.Cycle(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("[RUNNER] цикл: %v", err)
		}
	}
}

// Cycle: один проход по включённым символам.
func (r *Runner) Cycle(ctx context.Context) (err error) {
	start := time.Now()
	span, ctx := tracing.StartSpan(ctx, "runner.Cycle", nil)
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
		r.health.TouchCycle(start)
		tracing.Finish(span, err)
	}()

	symbols, err := r.enabled()
	if err != nil {
		return err
	}

	if r.needResync.Load() || !r.conn.IsConnected() {
		if err := r.recover(ctx, symbols); err != nil {
			return err
		}
	}
	if len(symbols) == 0 {
		return nil
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, sym := range symbols {
		g.Go(func() error {
			if err := r.processSymbol(gctx, sym); err != nil {
				if errors.Is(err, models.ErrConnectivity) {
					r.needResync.Store(true)
				}
				logger.Error("[RUNNER] %s: %v", sym, err)
			}
			// ошибка одного символа не останавливает остальные
			return nil
		})
	}
	return g.Wait()
}

// recover: переподключение и сверка до новых ордеров. Не вышло: символы на паузе.
func (r *Runner) recover(ctx context.Context, symbols []string) error {
	snap, err := r.resync.Resync(ctx, r.reconcile.MaxRetries, r.reconcile.RetryDelay)
	if err != nil {
		r.setHalted(symbols, true)
		r.health.SetReady(false)
		if r.n != nil {
			r.n.Sendf("🔌 Нет связи с брокером, торговля на паузе: %v", err)
		}
		return errors.Wrap(err, "resync")
	}
	r.needResync.Store(false)
	r.setHalted(symbols, false)
	r.health.SetReady(true)
	if len(snap.Dropped) > 0 || len(snap.Adopted) > 0 {
		logger.Warn("[RUNNER] после сверки: снято %v, принято %v", snap.Dropped, snap.Adopted)
	}
	return nil
}

func (r *Runner) setHalted(symbols []string, v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !v {
		clear(r.halted)
	}
	for _, s := range symbols {
		if v {
			r.halted[s] = true
		}
	}
	r.health.SetHalted(len(r.halted))
}

func (r *Runner) enabled() ([]string, error) {
	flags, err := r.control.Load()
	if err != nil {
		return nil, errors.Wrap(err, "control")
	}
	var out []string
	for sym, on := range flags {
		if on {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Runner) processSymbol(ctx context.Context, symbol string) error {
	contract, err := r.contract(ctx, symbol)
	if err != nil {
		return err
	}

	r.mu.Lock()
	first := !r.loaded[symbol]
	r.mu.Unlock()

	window := r.cfg.UpdateWindow
	if first {
		window = r.cfg.HistoryWindow
	}
	bars, err := r.conn.FetchBars(ctx, contract, window, r.cfg.BarSize)
	if err != nil {
		return errors.Wrapf(err, "fetch bars %s", window)
	}
	_, series, err := r.history.Update(symbol, bars)
	if err != nil {
		return err
	}
	last, ok := series.Last()

	r.mu.Lock()
	r.loaded[symbol] = true
	fresh := ok && last.Time.After(r.evaluated[symbol])
	if fresh {
		r.evaluated[symbol] = last.Time
	}
	r.mu.Unlock()

	// новой свечи нет или сигнал по ней уже был
	if !fresh || last.Annotated() {
		return nil
	}

	decision := r.gate.Evaluate(symbol, series.Tail(r.cfg.SeriesTail))
	logger.Debug("[EVAL] %s %s close=%v", symbol, decision, last.Close)
	if !decision.Actionable() {
		return nil
	}

	if r.cfg.ConfirmRequired && r.n != nil {
		prompt := fmt.Sprintf("🔔 [%s] SIGNAL %s @ %v\nTP/SL будут выставлены после входа. Войти?", symbol, decision, last.Close)
		if !r.n.Confirm(ctx, prompt, r.cfg.ConfirmTimeout) {
			logger.Info("[SIGNAL] %s %s: вход не подтверждён", symbol, decision)
			return nil
		}
	}

	res, err := r.eng.PlaceBracketOrder(ctx, engine.BracketRequest{
		Instrument:      contract.Instrument,
		Action:          decision.Action(),
		Quantity:        r.cfg.OrderQty,
		TargetOffset:    r.cfg.TargetPips,
		StopOffset:      r.cfg.StopPips,
		FillTimeout:     r.cfg.FillTimeout,
		WatchdogTimeout: r.cfg.WatchdogTimeout,
		FallbackTimeout: r.cfg.FallbackTimeout,
	})
	if err != nil {
		if r.n != nil && res.Outcome == engine.OutcomeNoFill {
			r.n.Sendf("⛔️ [%s] вход %s не исполнен вовремя, отменён", symbol, decision)
		}
		return err
	}
	if res.Outcome != engine.OutcomePlaced {
		logger.Info("[SIGNAL] %s %s: %s (%s)", symbol, decision, res.Outcome, res.Reason)
		return nil
	}

	if err := r.history.Annotate(symbol, last, string(decision)); err != nil {
		logger.Warn("[HISTORY] %s: маркер сигнала: %v", symbol, err)
	}
	if r.n != nil {
		g := res.Group
		r.n.Sendf("✅ [%s] %s %.0f @ %s | TP=%s SL=%s", symbol, g.Action, g.FilledQty, g.FillPrice, g.TakePrice, g.StopPrice)
	}
	return nil
}

// contract резолвит символ один раз за процесс.
func (r *Runner) contract(ctx context.Context, symbol string) (models.Contract, error) {
	r.mu.Lock()
	c, ok := r.contracts[symbol]
	r.mu.Unlock()
	if ok {
		return c, nil
	}
	c, err := r.conn.ResolveInstrument(ctx, InstrumentFor(symbol))
	if err != nil {
		return models.Contract{}, err
	}
	r.mu.Lock()
	r.contracts[symbol] = c
	r.mu.Unlock()
	return c, nil
}

// InstrumentFor: шесть букв это валютная пара (EURUSD), иначе акция.
func InstrumentFor(symbol string) models.Instrument {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if len(symbol) == 6 && isLetters(symbol) {
		return models.Forex(symbol)
	}
	return models.Instrument{Symbol: symbol, Kind: models.AssetStock, Currency: "USD", Exchange: "SMART"}
}

func isLetters(s string) bool {
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func (r *Runner) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			symbols, halted := len(r.loaded), len(r.halted)
			r.mu.Unlock()
			logger.Info("[HEALTH] symbols=%d | halted=%d | tracked=%d | brackets=%d | connected=%v",
				symbols, halted, len(r.eng.Registry().TrackedIDs()), len(r.eng.Brackets()), r.conn.IsConnected())
		}
	}
}
