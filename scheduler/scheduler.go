// Package scheduler runs named delayed and periodic tasks against the
// simulation clock. Tasks fire from Advance, never from a goroutine.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

// Scheduler manages periodic and delayed tasks.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	now     time.Duration
	seq     uint64
	stopped bool
	logger  *zap.Logger
}

type task struct {
	name     string
	due      time.Duration
	interval time.Duration // 0 for one-shot delays
	seq      uint64
	fn       TaskFn
}

// New creates a new Scheduler at simulation time 0.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		tasks:  make(map[string]*task),
		logger: logger,
	}
}

func (s *Scheduler) add(name string, delay, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if delay < 0 {
		delay = 0
	}
	s.seq++
	// Replaces any task with the same name.
	s.tasks[name] = &task{name: name, due: s.now + delay, interval: interval, seq: s.seq, fn: fn}
}

// AddTicker registers a task to run every interval of simulation time.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	if interval <= 0 {
		s.logger.Warn("ticker interval must be positive", zap.String("name", name), zap.Duration("interval", interval))
		return
	}
	s.add(name, interval, interval, fn)
	s.logger.Debug("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.add(name, delay, 0, fn)
}

// Remove cancels a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, name)
}

// Has reports whether a task with the given name is pending.
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

// Advance moves the scheduler to now and runs every task that is due, in
// due-time order. A ticker runs at most once per Advance. Tasks added while
// running wait for the next Advance.
func (s *Scheduler) Advance(now time.Duration) {
	s.mu.Lock()
	if now > s.now {
		s.now = now
	}
	var due []*task
	for _, t := range s.tasks {
		if t.due <= s.now {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})

	for _, t := range due {
		s.mu.Lock()
		// Skip tasks removed or replaced by an earlier task in this batch.
		if s.tasks[t.name] != t {
			s.mu.Unlock()
			continue
		}
		if t.interval > 0 {
			t.due += t.interval
			if t.due <= s.now {
				t.due = s.now + t.interval
			}
		} else {
			delete(s.tasks, t.name)
		}
		s.mu.Unlock()
		s.run(t)
	}
}

func (s *Scheduler) run(t *task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", t.name),
				zap.Any("recover", r))
		}
	}()
	t.fn()
}

// Now returns the time of the last Advance.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the names of all pending tasks in due order.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].due != ts[j].due {
			return ts[i].due < ts[j].due
		}
		return ts[i].seq < ts[j].seq
	})
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.name
	}
	return names
}

// ListTickers returns the names of all registered ticker tasks.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name, t := range s.tasks {
		if t.interval > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Clear drops every pending task but keeps the scheduler usable.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]*task)
}

// Stop drops every task and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.tasks = make(map[string]*task)
}
