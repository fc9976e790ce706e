// Package bus publishes arena notifications to in-process or Redis
// subscribers.
package bus

import (
	"context"
	"errors"

	"github.com/kasuganosora/combatcore/config"
)

// ErrClosed is returned by a Local bus after Close.
var ErrClosed = errors.New("bus: closed")

// Message is a received pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// PubSub defines channel publish/subscribe operations.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
	Close() error
}

// New returns a PubSub backed by Redis if RedisAddr is set, otherwise an
// in-process fan-out.
func New(cfg config.BusConfig) (PubSub, error) {
	if cfg.RedisAddr != "" {
		return NewRedis(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return NewLocal(cfg.LocalBuf), nil
}
