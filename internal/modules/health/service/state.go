package service

import (
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	brokerConnected atomic.Bool
	lastCycleUnix   atomic.Int64 // unix seconds
	lastResyncUnix  atomic.Int64
	haltedSymbols   atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetBrokerConnected(v bool) { s.brokerConnected.Store(v) }
func (s *State) BrokerConnected() bool     { return s.brokerConnected.Load() }

func (s *State) TouchCycle(t time.Time) { s.lastCycleUnix.Store(t.Unix()) }
func (s *State) LastCycle() time.Time  { return fromUnix(s.lastCycleUnix.Load()) }

func (s *State) TouchResync(t time.Time) { s.lastResyncUnix.Store(t.Unix()) }
func (s *State) LastResync() time.Time  { return fromUnix(s.lastResyncUnix.Load()) }

func (s *State) SetHalted(n int) { s.haltedSymbols.Store(int64(n)) }
func (s *State) Halted() int     { return int(s.haltedSymbols.Load()) }

func fromUnix(u int64) time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
