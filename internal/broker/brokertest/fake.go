// Package brokertest: управляемый брокер в памяти для тестов.
package brokertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bracket_bot/internal/models"
)

// Submitted: что было отправлено в Fake.
type Submitted struct {
	Handle   models.OrderHandle
	Contract models.Contract
	Request  models.OrderRequest
	At       time.Time
}

type orderRec struct {
	sub   Submitted
	state models.OrderState
}

// Fake: брокер, которым тест управляет руками.
//
// По умолчанию рыночные ордера исполняются сразу по MarketPrice, лимитные и стоп
// ордера висят в PreSubmitted. Всё можно переопределить хуками.
type Fake struct {
	mu sync.Mutex

	connected    bool
	ConnectErrs  int // сколько первых Connect вернут ошибку
	ConnectCalls int

	MarketPrice decimal.Decimal
	// FillMarket=false: рыночный вход не исполняется (no-fill сценарий).
	FillMarket bool
	// PartialFill: доля исполнения маркет-ордера (0 = полностью).
	PartialFill float64
	// OnSubmit вызывается после регистрации ордера; можно менять состояние.
	OnSubmit func(f *Fake, sub Submitted)
	// CancelErr: ошибка на CancelOrder.
	CancelErr error
	// SubmitErr: ошибка на SubmitOrder.
	SubmitErr error
	// Unresolvable: символы (Instrument.Name), которые не резолвятся.
	Unresolvable map[string]bool
	// CallErr: одна ошибка на следующем запросе, сокет при этом остаётся жив.
	CallErr error

	nextID    int64
	orders    map[int64]*orderRec
	order     []int64
	fills     []models.Fill
	cancels   []int64
	positions []models.PositionRecord
	extraOpen []models.OpenOrder
	bars      map[string][]models.Bar
	chains    map[string]models.OptionChain
	quotes    map[string]models.OptionQuote
}

func NewFake() *Fake {
	return &Fake{
		connected:    true,
		MarketPrice:  decimal.RequireFromString("1.10000"),
		FillMarket:   true,
		Unresolvable: map[string]bool{},
		nextID:       100,
		orders:       map[int64]*orderRec{},
		bars:         map[string][]models.Bar{},
		chains:       map[string]models.OptionChain{},
		quotes:       map[string]models.OptionQuote{},
	}
}

func (f *Fake) Connect(ctx context.Context, host string, port int, clientID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnectCalls++
	if f.ConnectErrs > 0 {
		f.ConnectErrs--
		return errors.New("connection refused")
	}
	f.connected = true
	return nil
}

func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

// Drop рвёт соединение, как будто шлюз отвалился.
func (f *Fake) Drop() { _ = f.Disconnect() }

func (f *Fake) takeCallErrLocked() error {
	err := f.CallErr
	f.CallErr = nil
	return err
}

func (f *Fake) ResolveInstrument(ctx context.Context, inst models.Instrument) (models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unresolvable[inst.Name()] {
		return models.Contract{}, errors.Wrapf(models.ErrResolution, "no contract for %s", inst.Name())
	}
	local := inst.Symbol
	if inst.Kind == models.AssetForex {
		local = inst.Symbol + "." + inst.Currency
	}
	return models.Contract{ConID: int64(len(inst.Name())) * 1000, Instrument: inst, LocalSymbol: local}, nil
}

func (f *Fake) SubmitOrder(ctx context.Context, contract models.Contract, req models.OrderRequest) (models.OrderHandle, error) {
	f.mu.Lock()
	if f.SubmitErr != nil {
		err := f.SubmitErr
		f.mu.Unlock()
		return models.OrderHandle{}, err
	}
	f.nextID++
	h := models.OrderHandle{OrderID: f.nextID, PermID: f.nextID * 10, ClientID: 2}
	sub := Submitted{Handle: h, Contract: contract, Request: req, At: time.Now()}
	rec := &orderRec{sub: sub, state: models.OrderState{
		OrderID: h.OrderID, PermID: h.PermID, Status: models.StatusPreSubmitted, Remaining: req.Quantity,
	}}
	f.orders[h.OrderID] = rec
	f.order = append(f.order, h.OrderID)

	if _, ok := req.Body.(models.MarketOrder); ok && f.FillMarket {
		qty := req.Quantity
		if f.PartialFill > 0 {
			qty = req.Quantity * f.PartialFill
		}
		f.fillLocked(h.OrderID, qty, f.MarketPrice)
	}
	hook := f.OnSubmit
	f.mu.Unlock()

	if hook != nil {
		hook(f, sub)
	}
	return h, nil
}

func (f *Fake) fillLocked(id int64, qty float64, px decimal.Decimal) {
	rec := f.orders[id]
	rec.state.Filled += qty
	rec.state.Remaining = rec.sub.Request.Quantity - rec.state.Filled
	rec.state.AvgFillPrice = px
	if rec.state.Remaining <= 0 {
		rec.state.Status = models.StatusFilled
	} else {
		rec.state.Status = models.StatusSubmitted
	}
	f.fills = append(f.fills, models.Fill{
		ExecID:   fmt.Sprintf("%d.%d", id, len(f.fills)+1),
		OrderID:  id,
		Contract: rec.sub.Contract,
		Action:   rec.sub.Request.Action,
		Shares:   qty,
		Price:    px,
		Time:     time.Now(),
	})
}

// Fill исполняет ордер вручную.
func (f *Fake) Fill(id int64, qty float64, px decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fillLocked(id, qty, px)
}

// SetStatus ставит статус ордера напрямую.
func (f *Fake) SetStatus(id int64, st models.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.orders[id]; ok {
		rec.state.Status = st
	}
}

func (f *Fake) CancelOrder(ctx context.Context, h models.OrderHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, h.OrderID)
	if f.CancelErr != nil {
		return f.CancelErr
	}
	if rec, ok := f.orders[h.OrderID]; ok && !rec.state.Status.IsTerminal() {
		rec.state.Status = models.StatusCancelled
	}
	return nil
}

func (f *Fake) OrderState(ctx context.Context, h models.OrderHandle) (models.OrderState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.orders[h.OrderID]
	if !ok {
		return models.OrderState{}, errors.Errorf("unknown order %d", h.OrderID)
	}
	return rec.state, nil
}

func (f *Fake) PollExecutions(ctx context.Context) ([]models.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, errors.New("not connected")
	}
	if err := f.takeCallErrLocked(); err != nil {
		return nil, err
	}
	out := make([]models.Fill, len(f.fills))
	copy(out, f.fills)
	return out, nil
}

func (f *Fake) QueryOpenOrders(ctx context.Context) ([]models.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeCallErrLocked(); err != nil {
		return nil, err
	}
	out := append([]models.OpenOrder(nil), f.extraOpen...)
	for _, id := range f.order {
		rec := f.orders[id]
		if rec.state.Status.IsTerminal() {
			continue
		}
		out = append(out, models.OpenOrder{
			OrderID:  id,
			PermID:   rec.state.PermID,
			Contract: rec.sub.Contract,
			Action:   rec.sub.Request.Action,
			Quantity: rec.sub.Request.Quantity,
			Type:     rec.sub.Request.Body.Type(),
			Status:   rec.state.Status,
			OcaGroup: rec.sub.Request.OcaGroup,
		})
	}
	return out, nil
}

func (f *Fake) QueryPositions(ctx context.Context) ([]models.PositionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeCallErrLocked(); err != nil {
		return nil, err
	}
	return append([]models.PositionRecord(nil), f.positions...), nil
}

func (f *Fake) FetchBars(ctx context.Context, contract models.Contract, window, barSize string) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Bar(nil), f.bars[contract.Instrument.Name()]...), nil
}

// SetPositions, AddOpenOrder, SetBars: подготовка состояния брокера. Свечи по Instrument.Name().
func (f *Fake) SetPositions(p ...models.PositionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions = p
}

func (f *Fake) AddOpenOrder(o models.OpenOrder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extraOpen = append(f.extraOpen, o)
}

func (f *Fake) SetBars(symbol string, bars []models.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars[symbol] = bars
}

// Submitted возвращает отправленные ордера по порядку.
func (f *Fake) Submitted() []Submitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Submitted, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.orders[id].sub)
	}
	return out
}

func (f *Fake) Cancels() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.cancels...)
}

func (f *Fake) OptionChain(ctx context.Context, underlying models.Instrument) (models.OptionChain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chain, ok := f.chains[underlying.Name()]
	if !ok {
		return models.OptionChain{}, errors.Wrapf(models.ErrResolution, "no option chain for %s", underlying.Name())
	}
	return chain, nil
}

// QuoteOptions отдаёт котировки только для заданных через SetOptionQuote.
func (f *Fake) QuoteOptions(ctx context.Context, insts []models.Instrument) ([]models.OptionQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeCallErrLocked(); err != nil {
		return nil, err
	}
	out := make([]models.OptionQuote, 0, len(insts))
	for _, inst := range insts {
		if q, ok := f.quotes[inst.Key()]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *Fake) SetOptionChain(symbol string, chain models.OptionChain) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chains[symbol] = chain
}

func (f *Fake) SetOptionQuote(q models.OptionQuote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[q.Contract.Key()] = q
}
