package redischannel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/cuisync/internal/padsync"
	"github.com/angelmondragon/cuisync/pkg/enums"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePubSub struct {
	published map[string][][]byte
	pubErr    error
	messages  chan *goredis.Message
	closed    bool
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{published: map[string][][]byte{}, messages: make(chan *goredis.Message, 4)}
}

func (f *fakePubSub) Publish(_ context.Context, channel string, payload []byte) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakePubSub) Subscribe(context.Context, string) (<-chan *goredis.Message, func() error, error) {
	return f.messages, func() error {
		f.closed = true
		close(f.messages)
		return nil
	}, nil
}

func TestPostPublishesEncodedMessage(t *testing.T) {
	fake := newFakePubSub()
	ch := newChannel(fake, "cs:sync:bistro", nil)

	msg, err := padsync.NewMessage(enums.SyncMessageTypePadSent, padsync.PadRef{PadID: "p1", Table: 4}, "host", time.Now())
	require.NoError(t, err)
	require.NoError(t, ch.Post(context.Background(), msg))

	require.Len(t, fake.published["cs:sync:bistro"], 1)
	decoded, err := padsync.Decode(fake.published["cs:sync:bistro"][0])
	require.NoError(t, err)
	assert.Equal(t, msg.EventID, decoded.EventID)
	assert.Equal(t, "host", decoded.DeviceID)
}

func TestPostWrapsPublishError(t *testing.T) {
	fake := newFakePubSub()
	fake.pubErr = errors.New("connection refused")
	ch := newChannel(fake, "cs:sync:bistro", nil)

	err := ch.Post(context.Background(), padsync.Message{Type: enums.SyncMessageTypePadSent})
	require.Error(t, err)
	assert.ErrorIs(t, err, fake.pubErr)
}

func TestSubscribeDecodesAndSkipsGarbage(t *testing.T) {
	fake := newFakePubSub()
	ch := newChannel(fake, "cs:sync:bistro", nil)

	received := make(chan padsync.Message, 2)
	unsubscribe, err := ch.Subscribe(context.Background(), func(_ context.Context, msg padsync.Message) {
		received <- msg
	})
	require.NoError(t, err)

	msg, err := padsync.NewMessage(enums.SyncMessageTypePadReady, padsync.PadRef{PadID: "p9"}, "kitchen", time.Now())
	require.NoError(t, err)
	data, err := padsync.Encode(msg)
	require.NoError(t, err)

	fake.messages <- &goredis.Message{Channel: "cs:sync:bistro", Payload: "not json"}
	fake.messages <- &goredis.Message{Channel: "cs:sync:bistro", Payload: string(data)}

	select {
	case got := <-received:
		assert.Equal(t, msg.EventID, got.EventID)
	case <-time.After(2 * time.Second):
		t.Fatalf("message not delivered")
	}

	require.NoError(t, unsubscribe())
	assert.True(t, fake.closed)
	assert.Empty(t, received)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "bistro", nil)
	assert.Error(t, err)
}
