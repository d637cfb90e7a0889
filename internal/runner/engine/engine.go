package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/config"
	"bracket_bot/pkg/logger"
)

// Session: то, что движку нужно от менеджера соединения.
type Session interface {
	ResolveInstrument(ctx context.Context, inst models.Instrument) (models.Contract, error)
	SubmitOrder(ctx context.Context, contract models.Contract, order models.OrderRequest) (models.OrderHandle, error)
	CancelOrder(ctx context.Context, handle models.OrderHandle) error
	OrderState(ctx context.Context, handle models.OrderHandle) (models.OrderState, error)
	PollExecutions(ctx context.Context) ([]models.Fill, error)
	QueryOpenOrders(ctx context.Context) ([]models.OpenOrder, error)
	QueryPositions(ctx context.Context) ([]models.PositionRecord, error)
	OptionChain(ctx context.Context, underlying models.Instrument) (models.OptionChain, error)
	QuoteOptions(ctx context.Context, insts []models.Instrument) ([]models.OptionQuote, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, row models.OrderAuditRow) error
}

type Journal interface {
	AddPosition(e models.PositionJournalEntry) error
	ClosePosition(orderID int64, exitAt time.Time, exitPrice float64) (bool, error)
	AddSignal(e models.SignalAuditEntry) error
}

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

type activeBracket struct {
	group     models.BracketGroup
	watchdogs []TaskID
	killTask  TaskID
}

// Engine: вход, брекет, watchdog и kill switch.
type Engine struct {
	s       Session
	reg     *Registry
	sched   *Scheduler
	locks   *KeyedMutex
	audit   AuditRecorder
	journal Journal
	notify  Notifier

	poll     time.Duration
	clientID int
	newOcaID func() string

	mu       sync.Mutex
	brackets map[string]*activeBracket // oca group -> bracket
}

func New(s Session, reg *Registry, audit AuditRecorder, journal Journal, notify Notifier, cfg *config.Config) *Engine {
	return &Engine{
		s:        s,
		reg:      reg,
		sched:    NewScheduler(),
		locks:    NewKeyedMutex(),
		audit:    audit,
		journal:  journal,
		notify:   notify,
		poll:     cfg.Trading.PollInterval,
		clientID: cfg.Broker.ClientID,
		newOcaID: func() string { return "oca-" + uuid.NewString() },
		brackets: make(map[string]*activeBracket),
	}
}

func (e *Engine) Registry() *Registry   { return e.reg }
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// Close снимает отложенные задачи и ждёт бегущие.
func (e *Engine) Close() {
	e.sched.Stop()
}

// Brackets: снимок активных брекетов.
func (e *Engine) Brackets() []models.BracketGroup {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.BracketGroup, 0, len(e.brackets))
	for _, b := range e.brackets {
		out = append(out, b.group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entry.ID < out[j].Entry.ID })
	return out
}

func (e *Engine) bracket(oca string) (*activeBracket, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.brackets[oca]
	return b, ok
}

func (e *Engine) setBracketState(oca string, st models.BracketState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.brackets[oca]; ok {
		b.group.State = st
		if st == models.BracketResolved || st == models.BracketFlattened {
			delete(e.brackets, oca)
		}
	}
}

// submit отправляет ордер и ставит его на учёт.
func (e *Engine) submit(ctx context.Context, contract models.Contract, req models.OrderRequest) (models.Order, error) {
	req.Transmit = true
	h, err := e.s.SubmitOrder(ctx, contract, req)
	if err != nil {
		return models.Order{}, err
	}
	o := models.Order{
		ID:         h.OrderID,
		PermID:     h.PermID,
		Instrument: contract.Instrument,
		Action:     req.Action,
		Quantity:   req.Quantity,
		Body:       req.Body,
		Status:     models.StatusPendingSubmit,
		OcaGroup:   req.OcaGroup,
		CreatedAt:  time.Now(),
	}
	e.reg.Track(o)
	logger.Info("[ORDER] %s %s %.0f %s id=%d oca=%q",
		contract.Instrument.Name(), req.Action, req.Quantity, req.Body.Type(), h.OrderID, req.OcaGroup)
	return o, nil
}

func handleOf(o models.Order, clientID int) models.OrderHandle {
	return models.OrderHandle{OrderID: o.ID, PermID: o.PermID, ClientID: clientID}
}

// cancelQuiet: отмена без ожидания подтверждения.
func (e *Engine) cancelQuiet(ctx context.Context, o models.Order) error {
	err := e.s.CancelOrder(ctx, handleOf(o, e.clientID))
	if err != nil {
		logger.Warn("[ORDER] отмена id=%d: %v", o.ID, err)
	}
	return err
}

// refresh перечитывает статус ордера у брокера и пишет в реестр.
func (e *Engine) refresh(ctx context.Context, o models.Order) (models.OrderState, error) {
	st, err := e.s.OrderState(ctx, handleOf(o, e.clientID))
	if err != nil {
		return st, err
	}
	if st.Status != "" {
		e.reg.SetStatus(o.ID, st.Status)
	}
	return st, nil
}

// sleep: одно окно опроса (или меньше до дедлайна).
func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// exposed: есть позиция, открытый ордер у брокера или свой ордер на учёте.
func (e *Engine) exposed(ctx context.Context, contract models.Contract) (bool, string, error) {
	key := contract.Key()

	for _, o := range e.reg.TrackedFor(key) {
		st, err := e.refresh(ctx, o)
		if errors.Is(err, models.ErrConnectivity) {
			return false, "", err
		}
		if err != nil {
			// статус не прочитали: считаем, что ордер жив
			return true, "tracked order", nil
		}
		if !st.Status.IsTerminal() {
			return true, "tracked order", nil
		}
	}

	positions, err := e.s.QueryPositions(ctx)
	if err != nil {
		return false, "", err
	}
	for _, p := range positions {
		if p.Contract.Key() == key && p.Quantity != 0 {
			return true, "open position", nil
		}
	}

	open, err := e.s.QueryOpenOrders(ctx)
	if err != nil {
		return false, "", err
	}
	for _, o := range open {
		if o.Contract.Key() == key && !o.Status.IsTerminal() {
			return true, "open order", nil
		}
	}
	return false, "", nil
}
