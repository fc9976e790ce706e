// Package notify is the observer registry owned by every notifying component.
package notify

import (
	"sort"
	"sync"
)

// Wildcard subscribes a handler to every event emitted on a hub.
const Wildcard = "*"

// Event is a one-way, fire-and-forget notification.
type Event struct {
	Name   string
	Source string  // entity ID of the emitter
	Value  float64 // health fraction for health_changed, otherwise 0
}

// Handler receives an event. It has no return value; listeners cannot veto.
type Handler func(Event)

type entry struct {
	priority int
	seq      int
	name     string
	fn       Handler
}

// Hub manages listener registrations for one emitting object.
type Hub struct {
	mu    sync.RWMutex
	subs  map[string][]*entry
	seq   int
	owner string
}

// NewHub creates a hub whose events carry owner as their Source.
func NewHub(owner string) *Hub {
	return &Hub{subs: make(map[string][]*entry), owner: owner}
}

// Owner returns the source ID stamped on emitted events.
func (h *Hub) Owner() string { return h.owner }

// On adds fn for event with the given priority (lower runs first, ties keep
// registration order). name identifies the listener for Off.
func (h *Hub) On(event, name string, priority int, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	entries := append(h.subs[event], &entry{priority: priority, seq: h.seq, name: name, fn: fn})
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	h.subs[event] = entries
}

// Off removes all listeners named name from event.
func (h *Hub) Off(event, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[event] = without(h.subs[event], name)
}

// OffAll removes listeners named name from every event.
func (h *Hub) OffAll(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ev, entries := range h.subs {
		h.subs[ev] = without(entries, name)
	}
}

func without(entries []*entry, name string) []*entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.name != name {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of listeners registered for event.
func (h *Hub) Count(event string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[event])
}

// Emit dispatches synchronously to the listeners of name, then to wildcard
// listeners. Listeners are snapshotted first, so handlers may add or remove
// registrations without disturbing the current dispatch.
func (h *Hub) Emit(name string, value float64) {
	h.mu.RLock()
	direct := make([]*entry, len(h.subs[name]))
	copy(direct, h.subs[name])
	var wild []*entry
	if name != Wildcard {
		wild = make([]*entry, len(h.subs[Wildcard]))
		copy(wild, h.subs[Wildcard])
	}
	h.mu.RUnlock()

	ev := Event{Name: name, Source: h.owner, Value: value}
	for _, e := range direct {
		e.fn(ev)
	}
	for _, e := range wild {
		e.fn(ev)
	}
}

// Forward re-emits every event of h on dst under the listener name.
// Source and Value are preserved.
func (h *Hub) Forward(name string, dst func(Event)) {
	h.On(Wildcard, name, 1000, dst)
}
