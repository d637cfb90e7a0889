package engine

import (
	"context"
	"sort"
	"sync"
	"time"
)

type TaskID uint64

type TaskInfo struct {
	ID   TaskID
	Name string
	Due  time.Time
}

type task struct {
	info   TaskInfo
	timer  *time.Timer
	cancel context.CancelFunc
}

// Scheduler: отложенные задачи (watchdog, kill switch) с явными хэндлами.
type Scheduler struct {
	mu      sync.Mutex
	seq     TaskID
	tasks   map[TaskID]*task
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[TaskID]*task),
		ctx:    ctx,
		cancel: cancel,
	}
}

// After запускает fn через d. После Stop возвращает 0 и ничего не планирует.
func (s *Scheduler) After(name string, d time.Duration, fn func(ctx context.Context)) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}

	s.seq++
	id := s.seq
	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{
		info:   TaskInfo{ID: id, Name: name, Due: time.Now().Add(d)},
		cancel: cancel,
	}
	s.tasks[id] = t
	s.wg.Add(1)

	t.timer = time.AfterFunc(d, func() {
		defer s.wg.Done()

		s.mu.Lock()
		_, live := s.tasks[id]
		delete(s.tasks, id)
		s.mu.Unlock()
		if !live {
			return // отменили, пока таймер срабатывал
		}
		defer cancel()
		fn(ctx)
	})
	return id
}

// Cancel снимает задачу. false: уже выполнилась или не было.
func (s *Scheduler) Cancel(id TaskID) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	if t.timer.Stop() {
		s.wg.Done()
	}
	return true
}

// Pending: ещё не сработавшие задачи по времени срабатывания.
func (s *Scheduler) Pending() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out
}

// Wait ждёт, пока все запланированные задачи выполнятся или будут отменены.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Stop отменяет всё и ждёт уже бегущие задачи.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	ids := make([]TaskID, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Cancel(id)
	}
	s.cancel()
	s.wg.Wait()
}
