// Package redischannel carries sync messages over Redis PUBLISH/SUBSCRIBE.
// Delivery is at-most-once: a device that is disconnected misses messages
// and catches up through later pad-updated messages.
package redischannel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/cuisync/internal/padsync"
	"github.com/angelmondragon/cuisync/pkg/logger"
	"github.com/angelmondragon/cuisync/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

type pubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan *goredis.Message, func() error, error)
}

type Channel struct {
	client pubSub
	name   string
	logg   *logger.Logger
}

// New builds a channel for restaurant on the shared Redis client.
func New(client *redis.Client, restaurant string, logg *logger.Logger) (*Channel, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if restaurant == "" {
		return nil, errors.New("restaurant is required")
	}
	return newChannel(client, client.SyncChannel(restaurant), logg), nil
}

func newChannel(client pubSub, name string, logg *logger.Logger) *Channel {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Channel{client: client, name: name, logg: logg}
}

// Name is the Redis channel the restaurant shares.
func (c *Channel) Name() string {
	return c.name
}

func (c *Channel) Post(ctx context.Context, msg padsync.Message) error {
	data, err := padsync.Encode(msg)
	if err != nil {
		return err
	}
	if err := c.client.Publish(ctx, c.name, data); err != nil {
		return fmt.Errorf("publish %s: %w", c.name, err)
	}
	return nil
}

func (c *Channel) Subscribe(ctx context.Context, handler padsync.Handler) (padsync.Unsubscribe, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	messages, closeFn, err := c.client.Subscribe(ctx, c.name)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		logCtx := c.logg.WithField(ctx, "channel", c.name)
		for raw := range messages {
			msg, err := padsync.Decode([]byte(raw.Payload))
			if err != nil {
				c.logg.Error(logCtx, "dropping undecodable sync message", err)
				continue
			}
			handler(ctx, msg)
		}
	}()

	var once sync.Once
	var closeErr error
	return func() error {
		once.Do(func() {
			closeErr = closeFn()
			<-done
		})
		return closeErr
	}, nil
}
