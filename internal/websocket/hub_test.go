package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient создает клиента без реального WebSocket соединения:
// насосы не запускаются, сообщения читаются прямо из канала send
func newTestClient(h *Hub, userID string) *Client {
	return &Client{
		UserID:       userID,
		DisplayName:  userID,
		ConnectionID: uuid.New().String(),
		hub:          h,
		send:         make(chan []byte, clientBufferSize),
	}
}

func TestHub_EvictionKeepsLatestConnection(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	first := newTestClient(h, "user-1")
	second := newTestClient(h, "user-1")

	h.Register(first)
	h.Register(second)

	// Канал вытесненного соединения закрывается
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-first.send:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, h.ClientCount())

	require.True(t, h.SendToUser("user-1", []byte("hello")))
	select {
	case msg := <-second.send:
		assert.Equal(t, "hello", string(msg))
	case <-time.After(time.Second):
		t.Fatal("сообщение не дошло до нового соединения")
	}
}

func TestHub_SendDuringEvictionDoesNotPanic(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	h.Register(newTestClient(h, "user-1"))

	// Отправки идут параллельно с переподключениями, которые закрывают
	// каналы вытесняемых соединений
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			h.SendToUser("user-1", []byte("tick"))
		}
	}()
	for i := 0; i < 50; i++ {
		h.Register(newTestClient(h, "user-1"))
	}
	<-done
}

func TestHub_SendToUnknownUser(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	assert.False(t, h.SendToUser("nobody", []byte("hello")))
}
