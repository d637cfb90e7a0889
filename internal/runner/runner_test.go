package runner

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"bracket_bot/internal/broker/brokertest"
	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/config"
	connsvc "bracket_bot/internal/modules/connection/service"
	controlsvc "bracket_bot/internal/modules/control/service"
	healthsvc "bracket_bot/internal/modules/health/service"
	tssvc "bracket_bot/internal/modules/timeseries/service"
	"bracket_bot/internal/runner/engine"
	"bracket_bot/internal/runner/reconcile"
)

type gateStub struct {
	mu       sync.Mutex
	decision models.Decision
	calls    int
}

func (g *gateStub) Name() string { return "stub" }

func (g *gateStub) Evaluate(string, models.SymbolSeries) models.Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.decision
}

type notifyStub struct {
	mu      sync.Mutex
	accept  bool
	prompts int
	msgs    []string
}

func (n *notifyStub) Send(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *notifyStub) Sendf(format string, args ...any) { n.Send(format) }

func (n *notifyStub) Confirm(context.Context, string, time.Duration) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prompts++
	return n.accept
}

type fixture struct {
	r       *Runner
	fb      *brokertest.Fake
	gate    *gateStub
	notify  *notifyStub
	history *tssvc.Store
	health  *healthsvc.State
}

func newFixture(t *testing.T, tune func(*config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{
		Broker: config.BrokerConfig{ClientID: 2, ConnectAttempts: 1},
		Trading: config.TradingConfig{
			OrderQty:        20000,
			TargetPips:      5,
			StopPips:        5,
			FillTimeout:     20 * time.Millisecond,
			FallbackTimeout: time.Hour,
			PollInterval:    2 * time.Millisecond,
			CycleInterval:   30 * time.Second,
			Workers:         2,
			HistoryWindow:   "1 D",
			UpdateWindow:    "30 S",
			BarSize:         "30 secs",
			SeriesTail:      300,
			ConfirmTimeout:  time.Second,
		},
		Reconcile: config.ReconcileConfig{MaxRetries: 2, RetryDelay: time.Millisecond},
	}
	if tune != nil {
		tune(cfg)
	}

	f := &fixture{
		fb:      brokertest.NewFake(),
		gate:    &gateStub{decision: models.DecisionHold},
		notify:  &notifyStub{accept: true},
		history: tssvc.NewStoreAt(t.TempDir()),
		health:  healthsvc.NewState(),
	}
	conn := connsvc.NewManager(f.fb, cfg, f.health)
	eng := engine.New(conn, engine.NewRegistry(), nil, nil, nil, cfg)
	t.Cleanup(eng.Close)

	ctrl := controlsvc.NewStoreAt(filepath.Join(t.TempDir(), "symbols.yaml"), []string{"EURUSD", "GBPUSD"})
	if err := ctrl.Reset(); err != nil {
		t.Fatalf("reset control: %v", err)
	}
	if _, err := ctrl.Enable("EURUSD"); err != nil {
		t.Fatalf("enable: %v", err)
	}

	f.r = New(cfg, Deps{
		Conn:    conn,
		History: f.history,
		Control: ctrl,
		Gate:    f.gate,
		Engine:  eng,
		Resync:  reconcile.NewService(conn, eng.Registry(), f.health),
		Notify:  f.notify,
		Health:  f.health,
	})
	f.fb.SetBars("EURUSD", bars(10))
	f.fb.SetBars("GBPUSD", bars(10))
	return f
}

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func bars(n int) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		px := 1.1 + float64(i)*0.0001
		out[i] = models.Bar{Time: t0.Add(time.Duration(i) * 30 * time.Second), Open: px, High: px, Low: px, Close: px}
	}
	return out
}

func lastStatus(t *testing.T, st *tssvc.Store, symbol string) string {
	t.Helper()
	series, err := st.Load(symbol)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	last, ok := series.Last()
	if !ok {
		t.Fatal("empty history")
	}
	return last.Status
}

func TestCyclePlacesBracketOnSignal(t *testing.T) {
	f := newFixture(t, nil)
	f.gate.decision = models.DecisionBuy
	ctx := context.Background()

	if err := f.r.Cycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	subs := f.fb.Submitted()
	if len(subs) != 3 {
		t.Fatalf("submitted %d, want entry + TP + SL", len(subs))
	}
	if subs[0].Request.Action != models.ActionBuy || subs[0].Request.Quantity != 20000 {
		t.Fatalf("entry = %+v", subs[0].Request)
	}
	if got := lastStatus(t, f.history, "EURUSD"); got != "BUY" {
		t.Fatalf("last bar status = %q", got)
	}
	if f.history.Exists("GBPUSD") {
		t.Fatal("disabled symbol must not be fetched")
	}

	// новой свечи нет: сигнал не пересчитывается
	if err := f.r.Cycle(ctx); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if f.gate.calls != 1 {
		t.Fatalf("gate calls = %d", f.gate.calls)
	}

	// новая свеча, но брекет ещё жив
	f.fb.SetBars("EURUSD", bars(11))
	if err := f.r.Cycle(ctx); err != nil {
		t.Fatalf("cycle 3: %v", err)
	}
	if f.gate.calls != 2 || len(f.fb.Submitted()) != 3 {
		t.Fatalf("gate calls = %d, submitted %d", f.gate.calls, len(f.fb.Submitted()))
	}
	if got := lastStatus(t, f.history, "EURUSD"); got != "" {
		t.Fatalf("exposed signal must not be marked, got %q", got)
	}
}

func TestCycleHold(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.r.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(f.fb.Submitted()) != 0 {
		t.Fatal("HOLD must not trade")
	}
	series, err := f.history.Load("EURUSD")
	if err != nil || len(series) != 10 {
		t.Fatalf("history: %d bars, %v", len(series), err)
	}
	if f.health.LastCycle().IsZero() {
		t.Fatal("cycle time not reported")
	}
}

func TestCycleConfirm(t *testing.T) {
	for _, accept := range []bool{false, true} {
		f := newFixture(t, func(c *config.Config) { c.Trading.ConfirmRequired = true })
		f.gate.decision = models.DecisionSell
		f.notify.accept = accept

		if err := f.r.Cycle(context.Background()); err != nil {
			t.Fatalf("cycle: %v", err)
		}
		want := 0
		if accept {
			want = 3
		}
		if f.notify.prompts != 1 || len(f.fb.Submitted()) != want {
			t.Fatalf("accept=%v: prompts=%d submitted=%d", accept, f.notify.prompts, len(f.fb.Submitted()))
		}
	}
}

func TestCycleResyncAfterDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	f.gate.decision = models.DecisionBuy
	f.fb.Drop()
	f.fb.ConnectErrs = 10

	err := f.r.Cycle(context.Background())
	if !errors.Is(err, models.ErrConnectivity) {
		t.Fatalf("want ErrConnectivity, got %v", err)
	}
	if len(f.fb.Submitted()) != 0 {
		t.Fatal("no orders without a session")
	}
	if f.health.Halted() != 1 || f.health.Ready() {
		t.Fatalf("halted=%d ready=%v", f.health.Halted(), f.health.Ready())
	}

	f.fb.ConnectErrs = 0
	if err := f.r.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle after reconnect: %v", err)
	}
	if f.health.Halted() != 0 || !f.health.Ready() || f.health.LastResync().IsZero() {
		t.Fatalf("halted=%d ready=%v", f.health.Halted(), f.health.Ready())
	}
	if len(f.fb.Submitted()) != 3 {
		t.Fatalf("submitted %d after recovery", len(f.fb.Submitted()))
	}
}

func TestCycleResolutionErrorIsolated(t *testing.T) {
	f := newFixture(t, nil)
	f.fb.Unresolvable["EURUSD"] = true

	if err := f.r.Cycle(context.Background()); err != nil {
		t.Fatalf("resolution error must not fail the cycle: %v", err)
	}
	if f.history.Exists("EURUSD") {
		t.Fatal("unresolved symbol must not be fetched")
	}
}

func TestInstrumentFor(t *testing.T) {
	cases := []struct {
		in       string
		kind     models.AssetKind
		symbol   string
		currency string
		key      string
	}{
		{"eurusd", models.AssetForex, "EUR", "USD", "EUR.USD"},
		{"USDJPY", models.AssetForex, "USD", "JPY", "USD.JPY"},
		{"AAPL", models.AssetStock, "AAPL", "USD", "AAPL"},
		{"BRK.B1", models.AssetStock, "BRK.B1", "USD", "BRK.B1"},
	}
	for _, tc := range cases {
		got := InstrumentFor(tc.in)
		if got.Kind != tc.kind || got.Symbol != tc.symbol || got.Currency != tc.currency || got.Key() != tc.key {
			t.Fatalf("%s -> %+v key %s", tc.in, got, got.Key())
		}
		if got.Name() != strings.ToUpper(tc.in) {
			t.Fatalf("%s -> name %s", tc.in, got.Name())
		}
	}
}
