package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bracket_bot/internal/models"
)

func TestSchedulerRunsAndCancels(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var ran, cancelled atomic.Int32
	s.After("run", 5*time.Millisecond, func(context.Context) { ran.Add(1) })
	id := s.After("cancel", 50*time.Millisecond, func(context.Context) { cancelled.Add(1) })

	if len(s.Pending()) != 2 {
		t.Fatalf("pending = %d", len(s.Pending()))
	}
	if !s.Cancel(id) {
		t.Fatal("cancel of pending task must succeed")
	}
	if s.Cancel(id) {
		t.Fatal("second cancel must report false")
	}
	s.Wait()

	if ran.Load() != 1 || cancelled.Load() != 0 {
		t.Fatalf("ran=%d cancelled=%d", ran.Load(), cancelled.Load())
	}
}

func TestSchedulerStop(t *testing.T) {
	s := NewScheduler()

	started := make(chan struct{})
	var ctxDone atomic.Bool
	s.After("long", time.Millisecond, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		ctxDone.Store(true)
	})
	s.After("never", time.Hour, func(context.Context) { t.Error("must not run") })

	<-started
	s.Stop()

	if !ctxDone.Load() {
		t.Fatal("running task must see cancelled context")
	}
	if id := s.After("late", time.Millisecond, func(context.Context) {}); id != 0 {
		t.Fatalf("After on stopped scheduler = %d", id)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	inst := models.Instrument{Symbol: "eurusd", Kind: models.AssetForex}

	r.Track(models.Order{ID: 1, Instrument: inst, Status: models.StatusPendingSubmit})
	r.Track(models.Order{ID: 2, Instrument: inst, Status: models.StatusPreSubmitted})
	r.Track(models.Order{ID: 3, Instrument: models.Instrument{Symbol: "GBPUSD"}, Status: models.StatusSubmitted})

	if got := r.TrackedFor(inst.Key()); len(got) != 2 || got[0].ID != 1 {
		t.Fatalf("tracked for EURUSD = %+v", got)
	}

	r.SetStatus(1, models.StatusFilled)
	if r.IsTracked(1) {
		t.Fatal("filled order must leave tracked set")
	}
	if o, _ := r.Get(1); o.Status != models.StatusFilled {
		t.Fatalf("status = %s", o.Status)
	}

	r.Retire(2)
	if r.IsTracked(2) || !r.IsRetired(2) {
		t.Fatal("retired order must be terminal")
	}
	if o, _ := r.Get(2); o.Status != models.StatusInactive {
		t.Fatalf("retired status = %s", o.Status)
	}

	open := models.OpenOrder{OrderID: 7, Contract: models.Contract{Instrument: inst}, Type: models.OrderStop, Status: models.StatusPreSubmitted}
	if !r.Adopt(open) || r.Adopt(open) {
		t.Fatal("adopt must be idempotent")
	}
	if o, _ := r.Get(7); o.Type() != models.OrderStop {
		t.Fatalf("adopted type = %s", o.Type())
	}
	if ids := r.TrackedIDs(); len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Fatalf("tracked ids = %v", ids)
	}
}

func TestKeyedMutex(t *testing.T) {
	k := NewKeyedMutex()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("EURUSD")
			defer unlock()
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}

	// другой ключ не ждёт
	done := make(chan struct{})
	go func() {
		unlock := k.Lock("GBPUSD")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked")
	}

	wg.Wait()
	if maxSeen.Load() != 1 {
		t.Fatalf("%d holders at once", maxSeen.Load())
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.locks) != 0 {
		t.Fatalf("locks leaked: %d", len(k.locks))
	}
}

func TestSummarizeDedupesExecIDs(t *testing.T) {
	fills := []models.Fill{
		{ExecID: "a", OrderID: 1, Shares: 10000, Price: dec("1.1000")},
		{ExecID: "a", OrderID: 1, Shares: 10000, Price: dec("1.1000")},
		{ExecID: "b", OrderID: 1, Shares: 10000, Price: dec("1.1002")},
		{ExecID: "c", OrderID: 2, Shares: 5000, Price: dec("1.3000")},
	}
	sum := summarize(fills, 1)
	if sum.qty != 20000 || !sum.avg.Equal(dec("1.1001")) {
		t.Fatalf("qty=%v avg=%s", sum.qty, sum.avg)
	}
}

func TestBracketPricesJPY(t *testing.T) {
	take, stop := BracketPrices(models.ActionBuy, dec("150.000"), 5, 5, dec("0.01"))
	if !take.Equal(dec("150.05")) || !stop.Equal(dec("149.95")) {
		t.Fatalf("take=%s stop=%s", take, stop)
	}
}
