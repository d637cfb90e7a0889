package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"bracket_bot/internal/broker"
	"bracket_bot/internal/metrics"
	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/config"
	"bracket_bot/pkg/logger"
)

type HealthReporter interface {
	SetBrokerConnected(v bool)
}

// Manager владеет сессией с брокером. Все вызовы брокера идут через него.
type Manager struct {
	b      broker.Broker
	cfg    config.BrokerConfig
	health HealthReporter

	mu sync.Mutex // одна попытка подключения за раз
}

func NewManager(b broker.Broker, cfg *config.Config, health HealthReporter) *Manager {
	return &Manager{
		b:      b,
		cfg:    cfg.Broker,
		health: health,
	}
}

// Connect: идемпотентно; ретраи с фиксированной паузой из конфига.
func (m *Manager) Connect(ctx context.Context) error {
	return m.ConnectWith(ctx, m.cfg.ConnectAttempts, m.cfg.ConnectDelay)
}

// ConnectWith: то же, но с явными границами (для реконсиляции).
func (m *Manager) ConnectWith(ctx context.Context, attempts int, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.b.IsConnected() {
		m.report(true)
		return nil
	}
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := m.b.Connect(ctx, m.cfg.Host, m.cfg.Port, m.cfg.ClientID)
		if err == nil {
			metrics.ConnectAttempts.WithLabelValues("ok").Inc()
			logger.Info("[CONN] подключены к %s:%d clientId=%d (попытка %d)", m.cfg.Host, m.cfg.Port, m.cfg.ClientID, attempt)
			m.report(true)
			return nil
		}
		lastErr = err
		metrics.ConnectAttempts.WithLabelValues("fail").Inc()
		logger.Warn("[CONN] попытка %d/%d не удалась: %v", attempt, attempts, err)

		if attempt == attempts {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			m.report(false)
			return errors.Wrapf(models.ErrConnectivity, "connect interrupted: %v", ctx.Err())
		case <-t.C:
		}
	}

	m.report(false)
	return errors.Wrapf(models.ErrConnectivity, "connect failed after %d attempts: %v", attempts, lastErr)
}

func (m *Manager) IsConnected() bool { return m.b.IsConnected() }

func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.report(false)
	return m.b.Disconnect()
}

func (m *Manager) report(v bool) {
	if m.health != nil {
		m.health.SetBrokerConnected(v)
	}
}

// guard: без сессии сразу ErrConnectivity; сбой транспорта помечает сессию упавшей.
// Если сокет при этом жив (мост потерял шлюз, таймаут), сессию рвём сами:
// иначе ConnectWith увидит IsConnected и не пошлёт hello заново.
func (m *Manager) guard(op string, fn func() error) error {
	if !m.b.IsConnected() {
		m.report(false)
		return errors.Wrapf(models.ErrConnectivity, "%s: not connected", op)
	}
	err := fn()
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrConnectivity) {
		if m.b.IsConnected() {
			logger.Warn("[CONN] %s: %v, сбрасываем сессию", op, err)
			_ = m.b.Disconnect()
		}
		m.report(false)
		return errors.WithMessage(err, op)
	}
	if !m.b.IsConnected() {
		m.report(false)
		return errors.Wrapf(models.ErrConnectivity, "%s: %v", op, err)
	}
	return errors.WithMessage(err, op)
}

func (m *Manager) ResolveInstrument(ctx context.Context, inst models.Instrument) (c models.Contract, err error) {
	err = m.guard("resolve "+inst.Name(), func() error {
		c, err = m.b.ResolveInstrument(ctx, inst)
		return err
	})
	return c, err
}

func (m *Manager) SubmitOrder(ctx context.Context, contract models.Contract, req models.OrderRequest) (h models.OrderHandle, err error) {
	err = m.guard("submit", func() error {
		h, err = m.b.SubmitOrder(ctx, contract, req)
		return err
	})
	if err == nil {
		metrics.OrdersTotal.WithLabelValues(contract.Instrument.Name(), string(req.Body.Type())).Inc()
	}
	return h, err
}

func (m *Manager) CancelOrder(ctx context.Context, h models.OrderHandle) error {
	return m.guard("cancel", func() error {
		return m.b.CancelOrder(ctx, h)
	})
}

func (m *Manager) OrderState(ctx context.Context, h models.OrderHandle) (st models.OrderState, err error) {
	err = m.guard("order state", func() error {
		st, err = m.b.OrderState(ctx, h)
		return err
	})
	return st, err
}

func (m *Manager) PollExecutions(ctx context.Context) (fills []models.Fill, err error) {
	err = m.guard("executions", func() error {
		fills, err = m.b.PollExecutions(ctx)
		return err
	})
	return fills, err
}

func (m *Manager) QueryOpenOrders(ctx context.Context) (out []models.OpenOrder, err error) {
	err = m.guard("open orders", func() error {
		out, err = m.b.QueryOpenOrders(ctx)
		return err
	})
	return out, err
}

func (m *Manager) QueryPositions(ctx context.Context) (out []models.PositionRecord, err error) {
	err = m.guard("positions", func() error {
		out, err = m.b.QueryPositions(ctx)
		return err
	})
	return out, err
}

func (m *Manager) FetchBars(ctx context.Context, contract models.Contract, window, barSize string) (out []models.Bar, err error) {
	err = m.guard("bars "+contract.Instrument.Name(), func() error {
		out, err = m.b.FetchBars(ctx, contract, window, barSize)
		return err
	})
	return out, err
}

func (m *Manager) OptionChain(ctx context.Context, underlying models.Instrument) (chain models.OptionChain, err error) {
	err = m.guard("option chain "+underlying.Name(), func() error {
		chain, err = m.b.OptionChain(ctx, underlying)
		return err
	})
	return chain, err
}

func (m *Manager) QuoteOptions(ctx context.Context, insts []models.Instrument) (out []models.OptionQuote, err error) {
	err = m.guard("option quotes", func() error {
		out, err = m.b.QuoteOptions(ctx, insts)
		return err
	})
	return out, err
}
