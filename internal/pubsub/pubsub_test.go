package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPubSub_DeliversToAllSubscribers(t *testing.T) {
	ps := NewLocalPubSub()
	defer ps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := ps.Subscribe(ctx, "race:1:changes")
	require.NoError(t, err)
	second, err := ps.Subscribe(ctx, "race:1:changes")
	require.NoError(t, err)
	other, err := ps.Subscribe(ctx, "race:2:changes")
	require.NoError(t, err)

	require.NoError(t, ps.Publish("race:1:changes", []byte("hello")))

	for _, ch := range []<-chan []byte{first, second} {
		select {
		case msg := <-ch:
			assert.Equal(t, "hello", string(msg))
		case <-time.After(time.Second):
			t.Fatal("сообщение не доставлено подписчику")
		}
	}

	select {
	case msg := <-other:
		t.Fatalf("неожиданное сообщение в чужом канале: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalPubSub_SubscriptionCanceledByContext(t *testing.T) {
	ps := NewLocalPubSub()
	defer ps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	messages, err := ps.Subscribe(ctx, "race:1:changes")
	require.NoError(t, err)

	cancel()

	// После отмены контекста канал закрывается
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-messages:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestLocalPubSub_PublishAfterCloseIsNoop(t *testing.T) {
	ps := NewLocalPubSub()
	require.NoError(t, ps.Close())
	assert.NoError(t, ps.Publish("race:1:changes", []byte("late")))
}
