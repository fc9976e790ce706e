package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/combatcore/config"
	"github.com/kasuganosora/combatcore/game/health"
	"github.com/kasuganosora/combatcore/game/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func recv(t *testing.T, ch <-chan *Message) *Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func TestNew_DefaultsToLocal(t *testing.T) {
	ps, err := New(config.BusConfig{})
	require.NoError(t, err)
	_, ok := ps.(*Local)
	assert.True(t, ok)
}

func TestLocal_PublishSubscribe(t *testing.T) {
	ps := NewLocal(16)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "combat.death")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "combat.death", "hello"))
	msg := recv(t, ch)
	assert.Equal(t, "combat.death", msg.Channel)
	assert.Equal(t, "hello", msg.Payload)
}

func TestLocal_MultiChannelSubscription(t *testing.T) {
	ps := NewLocal(16)
	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, "a", "b")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "a", "1"))
	require.NoError(t, ps.Publish(ctx, "b", "2"))
	require.NoError(t, ps.Publish(ctx, "c", "3"))
	assert.Equal(t, "1", recv(t, ch).Payload)
	assert.Equal(t, "2", recv(t, ch).Payload)
	assert.Empty(t, ch)
}

func TestLocal_CancelClosesOnce(t *testing.T) {
	ps := NewLocal(16)
	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, "a", "b")
	require.NoError(t, err)

	cancel()
	assert.NotPanics(t, cancel)
	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, ps.Publish(ctx, "a", "late"))
}

func TestLocal_FullBufferDrops(t *testing.T) {
	ps := NewLocal(1)
	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, "a")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "a", "1"))
	require.NoError(t, ps.Publish(ctx, "a", "2"))
	assert.Equal(t, "1", recv(t, ch).Payload)
	assert.Empty(t, ch)
}

func TestLocal_Close(t *testing.T) {
	ps := NewLocal(4)
	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, ps.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, cancel)
	assert.ErrorIs(t, ps.Publish(ctx, "a", "x"), ErrClosed)
	_, _, err = ps.Subscribe(ctx, "a")
	assert.ErrorIs(t, err, ErrClosed)
}

type fakeSource struct {
	now time.Duration
	hub *notify.Hub
}

func (s *fakeSource) Observe(name string, fn notify.Handler) { s.hub.Forward(name, fn) }
func (s *fakeSource) Now() time.Duration                    { return s.now }

func TestForwarder_PublishesEnvelope(t *testing.T) {
	ps := NewLocal(16)
	ch, cancel, err := ps.Subscribe(context.Background(), "combat.health_changed")
	require.NoError(t, err)
	defer cancel()

	src := &fakeSource{now: 1500 * time.Millisecond, hub: notify.NewHub("e1")}
	f := Attach(ps, src, DefaultPrefix, zap.NewNop())
	src.hub.Emit(health.EventHealthChanged, 0.5)
	f.Stop()

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(recv(t, ch).Payload), &env))
	assert.Equal(t, Envelope{Event: "health_changed", Source: "e1", Value: 0.5, SimTimeMs: 1500}, env)
}

func TestForwarder_StopIdempotent(t *testing.T) {
	f := NewForwarder(NewLocal(1), DefaultPrefix, nil, 0, nil)
	f.Stop()
	assert.NotPanics(t, f.Stop)
	assert.Equal(t, "combat.death", f.Channel("death"))
}

func TestForwarder_ConcurrentStop(t *testing.T) {
	f := NewForwarder(NewLocal(1), DefaultPrefix, nil, 0, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotPanics(t, f.Stop)
		}()
	}
	wg.Wait()
}
