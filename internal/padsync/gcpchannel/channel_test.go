package gcpchannel

import (
	"context"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/cuisync/internal/padsync"
	"github.com/angelmondragon/cuisync/pkg/enums"
	"github.com/angelmondragon/cuisync/pkg/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryIdempotencyStore struct {
	keys   map[string]bool
	setErr error
}

func (m *memoryIdempotencyStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "cs:idempotency:" + scope + ":" + id
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakePublisher struct {
	messages []*pubsub.Message
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return fakeResult{err: f.err}
}

type blockingReceiver struct{}

func (blockingReceiver) Receive(ctx context.Context, _ func(context.Context, *pubsub.Message)) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestChannel(t *testing.T, store *memoryIdempotencyStore) (*Channel, *fakePublisher) {
	t.Helper()
	manager, err := idempotency.NewManager(store, time.Hour)
	require.NoError(t, err)
	pub := &fakePublisher{}
	ch, err := newChannel("kitchen", pub, blockingReceiver{}, manager, nil)
	require.NoError(t, err)
	return ch, pub
}

func buildMessage(t *testing.T) (*pubsub.Message, padsync.Message) {
	t.Helper()
	msg, err := padsync.NewMessage(enums.SyncMessageTypePadSent, padsync.PadRef{PadID: "p1", Table: 3}, "host", time.Now())
	require.NoError(t, err)
	data, err := padsync.Encode(msg)
	require.NoError(t, err)
	return &pubsub.Message{
		ID:   "m-1",
		Data: data,
		Attributes: map[string]string{
			attrEventID:   msg.EventID,
			attrEventType: string(msg.Type),
			attrDeviceID:  msg.DeviceID,
		},
	}, msg
}

func TestPostSetsAttributes(t *testing.T) {
	ch, pub := newTestChannel(t, &memoryIdempotencyStore{keys: map[string]bool{}})
	_, msg := buildMessage(t)

	require.NoError(t, ch.Post(context.Background(), msg))
	require.Len(t, pub.messages, 1)
	attrs := pub.messages[0].Attributes
	assert.Equal(t, msg.EventID, attrs[attrEventID])
	assert.Equal(t, "pad-sent", attrs[attrEventType])
	assert.Equal(t, "host", attrs[attrDeviceID])
}

func TestPostReturnsPublishFailure(t *testing.T) {
	ch, pub := newTestChannel(t, &memoryIdempotencyStore{keys: map[string]bool{}})
	pub.err = errors.New("deadline exceeded")
	_, msg := buildMessage(t)

	err := ch.Post(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, pub.err)
}

func TestProcessDeliversOnceAcrossRedelivery(t *testing.T) {
	ch, _ := newTestChannel(t, &memoryIdempotencyStore{keys: map[string]bool{}})
	raw, msg := buildMessage(t)

	var delivered []padsync.Message
	handler := func(_ context.Context, m padsync.Message) { delivered = append(delivered, m) }

	result := ch.process(context.Background(), raw, handler)
	if !result.ack || result.nack {
		t.Fatalf("expected ack on first delivery")
	}
	result = ch.process(context.Background(), raw, handler)
	if !result.ack {
		t.Fatalf("expected ack on redelivery")
	}
	require.Len(t, delivered, 1)
	assert.Equal(t, msg.EventID, delivered[0].EventID)
}

func TestProcessNacksWhenIdempotencyUnavailable(t *testing.T) {
	ch, _ := newTestChannel(t, &memoryIdempotencyStore{keys: map[string]bool{}, setErr: errors.New("redis down")})
	raw, _ := buildMessage(t)

	called := false
	result := ch.process(context.Background(), raw, func(context.Context, padsync.Message) { called = true })
	if !result.nack {
		t.Fatalf("expected nack when idempotency check fails")
	}
	assert.False(t, called)
}

func TestProcessAcksPoisonMessages(t *testing.T) {
	ch, _ := newTestChannel(t, &memoryIdempotencyStore{keys: map[string]bool{}})
	result := ch.process(context.Background(), &pubsub.Message{Data: []byte("garbage")}, func(context.Context, padsync.Message) {
		t.Fatalf("handler must not run")
	})
	if !result.ack {
		t.Fatalf("expected ack for undecodable message")
	}
}

func TestSubscribeStopsOnUnsubscribe(t *testing.T) {
	ch, _ := newTestChannel(t, &memoryIdempotencyStore{keys: map[string]bool{}})
	unsubscribe, err := ch.Subscribe(context.Background(), func(context.Context, padsync.Message) {})
	require.NoError(t, err)
	assert.NoError(t, unsubscribe())
	assert.NoError(t, unsubscribe())
}
