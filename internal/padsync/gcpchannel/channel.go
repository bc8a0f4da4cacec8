// Package gcpchannel carries sync messages over a Cloud Pub/Sub topic. Each
// device reads through its own subscription; redeliveries are dropped using
// the Redis idempotency guard keyed by event id.
package gcpchannel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/cuisync/internal/padsync"
	"github.com/angelmondragon/cuisync/pkg/idempotency"
	"github.com/angelmondragon/cuisync/pkg/logger"
	"github.com/google/uuid"
)

const (
	attrEventID   = "event_id"
	attrEventType = "event_type"
	attrDeviceID  = "device_id"

	defaultPublishTimeout = 15 * time.Second
)

type publisher interface {
	Publish(context.Context, *pubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type Params struct {
	DeviceID     string
	Publisher    *pubsub.Publisher
	Subscription *pubsub.Subscriber
	Idempotency  *idempotency.Manager
	Logger       *logger.Logger
}

type Channel struct {
	deviceID    string
	publisher   publisher
	receiver    receiver
	idempotency *idempotency.Manager
	logg        *logger.Logger
}

func New(params Params) (*Channel, error) {
	if params.Publisher == nil {
		return nil, errors.New("sync publisher is required")
	}
	if params.Subscription == nil {
		return nil, errors.New("sync subscription is required")
	}
	return newChannel(params.DeviceID, &gcpPublisher{Publisher: params.Publisher}, params.Subscription, params.Idempotency, params.Logger)
}

func newChannel(deviceID string, pub publisher, recv receiver, manager *idempotency.Manager, logg *logger.Logger) (*Channel, error) {
	if deviceID == "" {
		return nil, errors.New("device id is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Channel{
		deviceID:    deviceID,
		publisher:   pub,
		receiver:    recv,
		idempotency: manager,
		logg:        logg,
	}, nil
}

func (c *Channel) Post(ctx context.Context, msg padsync.Message) error {
	data, err := padsync.Encode(msg)
	if err != nil {
		return err
	}
	result := c.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			attrEventID:   msg.EventID,
			attrEventType: string(msg.Type),
			attrDeviceID:  msg.DeviceID,
		},
	})
	if result == nil {
		return errors.New("publisher unavailable")
	}

	getCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		getCtx, cancel = context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()
	}
	if _, err := result.Get(getCtx); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

// Subscribe starts receiving in the background. The returned func cancels
// the receive loop and waits for it to exit.
func (c *Channel) Subscribe(ctx context.Context, handler padsync.Handler) (padsync.Unsubscribe, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	recvCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- c.receiver.Receive(recvCtx, func(ctx context.Context, msg *pubsub.Message) {
			result := c.process(ctx, msg, handler)
			if result.nack {
				msg.Nack()
				return
			}
			msg.Ack()
		})
	}()

	var once sync.Once
	var recvErr error
	return func() error {
		once.Do(func() {
			cancel()
			recvErr = <-done
			if errors.Is(recvErr, context.Canceled) {
				recvErr = nil
			}
		})
		return recvErr
	}, nil
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Channel) process(ctx context.Context, msg *pubsub.Message, handler padsync.Handler) processResult {
	logCtx := c.logg.WithSyncMessage(c.logg.WithField(ctx, "message_id", msg.ID), msg.Attributes[attrEventID], msg.Attributes[attrEventType], msg.Attributes[attrDeviceID])

	decoded, err := padsync.Decode(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode sync message", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(decoded.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, c.deviceID, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Debug(logCtx, "sync event already applied")
		return processResult{ack: true}
	}

	handler(ctx, decoded)
	return processResult{ack: true}
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
