// Package journal persists arena notifications to the database in batches.
package journal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/combatcore/game/health"
	"github.com/kasuganosora/combatcore/game/notify"
	"github.com/kasuganosora/combatcore/game/weapon"
	"github.com/kasuganosora/combatcore/game/world"
	"github.com/kasuganosora/combatcore/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ListenerName is the observer name used by Attach.
const ListenerName = "journal"

// Observable is anything that can forward notifications, usually *world.World.
type Observable interface {
	Observe(name string, fn notify.Handler)
	Now() time.Duration
}

// Options tunes batching. Zero values pick the defaults.
type Options struct {
	SessionID     string
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	Logger        *zap.Logger
}

type record struct {
	event   *model.CombatEvent
	summary *model.RunSummary
}

// Service logs notifications asynchronously. Record never blocks, so it is
// safe to call from inside a simulation tick.
type Service struct {
	db       *gorm.DB
	ch       chan record
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
	session  string
	batch    int
	every    time.Duration
	now      func() time.Duration

	mu       sync.Mutex
	run      int
	runStart time.Duration
	shots    int
	deaths   int
	dropped  int
}

// New creates a Service and starts its background worker. now supplies the
// simulation time stamped on each row.
func New(db *gorm.DB, now func() time.Duration, opts Options) *Service {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Duration { return 0 }
	}
	svc := &Service{
		db:      db,
		ch:      make(chan record, opts.QueueSize),
		stopCh:  make(chan struct{}),
		logger:  opts.Logger,
		session: opts.SessionID,
		batch:   opts.BatchSize,
		every:   opts.FlushInterval,
		now:     now,
		run:     1,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Attach creates a Service observing src.
func Attach(db *gorm.DB, src Observable, opts Options) *Service {
	svc := New(db, src.Now, opts)
	src.Observe(ListenerName, svc.Record)
	return svc
}

// SessionID identifies this process's rows.
func (svc *Service) SessionID() string { return svc.session }

// Dropped is the number of rows lost to a full queue.
func (svc *Service) Dropped() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.dropped
}

// Record enqueues one notification. It is a notify.Handler.
func (svc *Service) Record(ev notify.Event) {
	now := svc.now()

	svc.mu.Lock()
	var summary *model.RunSummary
	switch ev.Name {
	case weapon.EventShotFired:
		svc.shots++
	case health.EventDeath:
		svc.deaths++
	case world.EventRunReset:
		summary = svc.closeRunLocked(now)
		svc.run = int(ev.Value)
		svc.runStart = now
	}
	row := &model.CombatEvent{
		SessionID: svc.session,
		Run:       svc.run,
		SimTimeMs: now.Milliseconds(),
		Source:    ev.Source,
		Event:     ev.Name,
		Value:     ev.Value,
		Payload:   payloadOf(ev),
	}
	svc.mu.Unlock()

	if summary != nil {
		svc.enqueue(record{summary: summary})
	}
	svc.enqueue(record{event: row})
}

func (svc *Service) closeRunLocked(now time.Duration) *model.RunSummary {
	s := &model.RunSummary{
		SessionID:  svc.session,
		Run:        svc.run,
		DurationMs: (now - svc.runStart).Milliseconds(),
		Shots:      svc.shots,
		Deaths:     svc.deaths,
	}
	svc.shots, svc.deaths = 0, 0
	return s
}

func (svc *Service) enqueue(r record) {
	select {
	case svc.ch <- r:
	default:
		svc.mu.Lock()
		svc.dropped++
		svc.mu.Unlock()
		svc.logger.Warn("journal queue full, dropping row")
	}
}

// payloadOf names the meaning of the event's scalar.
func payloadOf(ev notify.Event) datatypes.JSON {
	var body map[string]any
	switch ev.Name {
	case health.EventHealthChanged:
		body = map[string]any{"fraction": ev.Value}
	case world.EventGameOver:
		body = map[string]any{"restart_in_s": ev.Value}
	case world.EventRunReset:
		body = map[string]any{"run": int(ev.Value)}
	case world.EventInteracted:
		body = map[string]any{"heal": ev.Value}
	default:
		return nil
	}
	raw, _ := json.Marshal(body)
	return datatypes.JSON(raw)
}

// Stop writes a summary for the run in progress, flushes remaining rows and
// shuts down the worker. It blocks until the worker has finished.
// Concurrent and repeated calls are safe.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() {
		svc.mu.Lock()
		summary := svc.closeRunLocked(svc.now())
		svc.mu.Unlock()
		svc.enqueue(record{summary: summary})
		close(svc.stopCh)
	})
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.every)
	defer ticker.Stop()

	events := make([]*model.CombatEvent, 0, svc.batch)
	var summaries []*model.RunSummary

	flush := func() {
		if len(events) > 0 {
			if err := svc.db.Create(&events).Error; err != nil {
				svc.logger.Error("journal batch write failed", zap.Error(err), zap.Int("rows", len(events)))
			}
			events = events[:0]
		}
		for _, s := range summaries {
			if err := svc.db.Create(s).Error; err != nil {
				svc.logger.Error("run summary write failed", zap.Error(err), zap.Int("run", s.Run))
			}
		}
		summaries = summaries[:0]
	}
	add := func(r record) {
		if r.event != nil {
			events = append(events, r.event)
		}
		if r.summary != nil {
			summaries = append(summaries, r.summary)
		}
	}

	for {
		select {
		case r := <-svc.ch:
			add(r)
			if len(events) >= svc.batch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case r := <-svc.ch:
					add(r)
				default:
					flush()
					return
				}
			}
		}
	}
}
