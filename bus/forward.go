package bus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kasuganosora/combatcore/game/notify"
	"go.uber.org/zap"
)

// ListenerName is the observer name used by Attach.
const ListenerName = "bus"

// DefaultPrefix is prepended to the event name to form the channel.
const DefaultPrefix = "combat."

// Envelope is the JSON payload published for each notification.
type Envelope struct {
	Event     string  `json:"event"`
	Source    string  `json:"source"`
	Value     float64 `json:"value"`
	SimTimeMs int64   `json:"sim_time_ms"`
}

// Observable is anything that can forward notifications, usually
// *world.World.
type Observable interface {
	Observe(name string, fn notify.Handler)
	Now() time.Duration
}

// Forwarder publishes notifications from a background goroutine so that
// Handle never blocks the simulation tick on network I/O.
type Forwarder struct {
	ps       PubSub
	prefix   string
	now      func() time.Duration
	logger   *zap.Logger
	ch       chan Envelope
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewForwarder starts a forwarder. A queue of size 0 defaults to 1024.
func NewForwarder(ps PubSub, prefix string, now func() time.Duration, queue int, logger *zap.Logger) *Forwarder {
	if queue <= 0 {
		queue = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Duration { return 0 }
	}
	f := &Forwarder{
		ps:     ps,
		prefix: prefix,
		now:    now,
		logger: logger,
		ch:     make(chan Envelope, queue),
		stopCh: make(chan struct{}),
	}
	f.wg.Add(1)
	go f.worker()
	return f
}

// Attach creates a Forwarder fed by src.
func Attach(ps PubSub, src Observable, prefix string, logger *zap.Logger) *Forwarder {
	f := NewForwarder(ps, prefix, src.Now, 0, logger)
	src.Observe(ListenerName, f.Handle)
	return f
}

// Channel is the bus channel an event is published on.
func (f *Forwarder) Channel(event string) string { return f.prefix + event }

// Handle enqueues a notification. It is a notify.Handler.
func (f *Forwarder) Handle(ev notify.Event) {
	env := Envelope{Event: ev.Name, Source: ev.Source, Value: ev.Value, SimTimeMs: f.now().Milliseconds()}
	select {
	case f.ch <- env:
	default:
		f.logger.Warn("bus queue full, dropping notification", zap.String("event", ev.Name))
	}
}

// Stop publishes what is queued and shuts the worker down.
// Concurrent and repeated calls are safe.
func (f *Forwarder) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.wg.Wait()
}

func (f *Forwarder) worker() {
	defer f.wg.Done()
	for {
		select {
		case env := <-f.ch:
			f.publish(env)
		case <-f.stopCh:
			for {
				select {
				case env := <-f.ch:
					f.publish(env)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) publish(env Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		f.logger.Error("encode notification", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.ps.Publish(ctx, f.Channel(env.Event), string(raw)); err != nil {
		f.logger.Warn("publish notification failed", zap.String("event", env.Event), zap.Error(err))
	}
}
