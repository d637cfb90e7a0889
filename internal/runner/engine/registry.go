package engine

import (
	"sort"
	"sync"

	"bracket_bot/internal/models"
)

// Registry: какие ордера мы считаем открытыми и их последний статус.
// Все изменения под одним мьютексом: пишут драйвер, отложенные задачи и реконсиляция.
type Registry struct {
	mu      sync.RWMutex
	orders  map[int64]*models.Order
	tracked map[int64]struct{}
	retired map[int64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		orders:  make(map[int64]*models.Order),
		tracked: make(map[int64]struct{}),
		retired: make(map[int64]struct{}),
	}
}

func (r *Registry) Track(o models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := o
	r.orders[o.ID] = &cp
	if !o.Status.IsTerminal() {
		r.tracked[o.ID] = struct{}{}
	}
}

// Adopt берёт под учёт ордер, открытый у брокера. false: уже отслеживается.
func (r *Registry) Adopt(o models.OpenOrder) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tracked[o.OrderID]; ok {
		return false
	}
	var body models.OrderBody = models.MarketOrder{}
	switch o.Type {
	case models.OrderLimit:
		body = models.LimitOrder{}
	case models.OrderStop:
		body = models.StopOrder{}
	}
	r.orders[o.OrderID] = &models.Order{
		ID:         o.OrderID,
		PermID:     o.PermID,
		Instrument: o.Contract.Instrument,
		Action:     o.Action,
		Quantity:   o.Quantity,
		Body:       body,
		Status:     o.Status,
		OcaGroup:   o.OcaGroup,
	}
	r.tracked[o.OrderID] = struct{}{}
	delete(r.retired, o.OrderID)
	return true
}

// SetStatus обновляет статус; терминальный статус снимает ордер с учёта.
func (r *Registry) SetStatus(id int64, st models.OrderStatus) (models.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return models.Order{}, false
	}
	o.Status = st
	if st.IsTerminal() {
		delete(r.tracked, id)
	}
	return *o, true
}

// Retire: ордера нет у брокера, помечаем терминальным, больше не трогаем.
func (r *Registry) Retire(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok && !o.Status.IsTerminal() {
		o.Status = models.StatusInactive
	}
	delete(r.tracked, id)
	r.retired[id] = struct{}{}
}

func (r *Registry) IsRetired(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.retired[id]
	return ok
}

func (r *Registry) IsTracked(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tracked[id]
	return ok
}

func (r *Registry) Get(id int64) (models.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return *o, true
}

func (r *Registry) TrackedIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.tracked))
	for id := range r.tracked {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TrackedFor: открытые ордера по ключу инструмента.
func (r *Registry) TrackedFor(key string) []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Order
	for id := range r.tracked {
		if o := r.orders[id]; o.Instrument.Key() == key {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
