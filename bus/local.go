package bus

import (
	"context"
	"sync"
)

type subscriber struct {
	ch chan *Message
}

// Local is an in-process fan-out pub/sub. Publish never blocks; a message
// is dropped for any subscriber whose buffer is full.
type Local struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	bufSize     int
	closed      bool
}

// NewLocal creates a Local bus with the given per-subscriber buffer size.
func NewLocal(bufSize int) *Local {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Local{
		subscribers: make(map[string][]*subscriber),
		bufSize:     bufSize,
	}
}

func (ps *Local) Publish(_ context.Context, channel, message string) error {
	msg := &Message{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if ps.closed {
		return ErrClosed
	}
	for _, s := range ps.subscribers[channel] {
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns one channel receiving messages from all the given
// channels, and a cancel function that closes it.
func (ps *Local) Subscribe(_ context.Context, channels ...string) (<-chan *Message, func(), error) {
	ch := make(chan *Message, ps.bufSize)
	sub := &subscriber{ch: ch}

	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil, nil, ErrClosed
	}
	for _, c := range channels {
		ps.subscribers[c] = append(ps.subscribers[c], sub)
	}
	ps.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ps.mu.Lock()
			defer ps.mu.Unlock()
			if ps.detach(sub, channels) {
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

// detach removes sub and reports whether it was still registered.
func (ps *Local) detach(sub *subscriber, channels []string) bool {
	found := false
	for _, c := range channels {
		list := ps.subscribers[c]
		for j, s := range list {
			if s == sub {
				ps.subscribers[c] = append(list[:j:j], list[j+1:]...)
				found = true
				break
			}
		}
		if len(ps.subscribers[c]) == 0 {
			delete(ps.subscribers, c)
		}
	}
	return found
}

// Close closes every subscription channel.
func (ps *Local) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return nil
	}
	ps.closed = true
	seen := make(map[*subscriber]bool)
	for _, list := range ps.subscribers {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				close(s.ch)
			}
		}
	}
	ps.subscribers = make(map[string][]*subscriber)
	return nil
}
