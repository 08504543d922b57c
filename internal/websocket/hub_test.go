package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quietLogger struct{}

func (quietLogger) Debug(string, string, map[string]interface{}) {}
func (quietLogger) Info(string, string, map[string]interface{})  {}
func (quietLogger) Warn(string, string, map[string]interface{})  {}
func (quietLogger) Error(string, string, map[string]interface{}) {}
func (quietLogger) Sync() error                                  { return nil }

func newTestHub() *Hub {
	h := NewHub(nil, quietLogger{})
	go h.Run()
	return h
}

func registerAndWait(t *testing.T, h *Hub, client *Client) {
	t.Helper()
	h.register <- client
	require.Eventually(t, func() bool {
		return len(h.snapshot(client.UserID)) == 1
	}, time.Second, time.Millisecond)
}

func TestSendToSlowClientDropsWithoutPanic(t *testing.T) {
	h := newTestHub()

	// One-slot buffer and no writePump draining it.
	client := &Client{Hub: h, UserID: "u1", Send: make(chan []byte, 1)}
	registerAndWait(t, h, client)

	h.Send("u1", []byte("birinci"))
	h.Send("u1", []byte("ikinci")) // overflows, evicts the client

	require.Eventually(t, func() bool {
		return len(h.snapshot("u1")) == 0
	}, time.Second, time.Millisecond)

	// The buffered frame drains, then the channel reads closed.
	frame, ok := <-client.Send
	require.True(t, ok)
	assert.Equal(t, "birinci", string(frame))
	_, ok = <-client.Send
	assert.False(t, ok, "send channel closed after eviction")

	// Further sends to the gone user are harmless.
	h.Send("u1", []byte("üçüncü"))
}

func TestRepeatedUnregisterClosesOnce(t *testing.T) {
	h := newTestHub()

	client := &Client{Hub: h, UserID: "u1", Send: make(chan []byte, 1)}
	registerAndWait(t, h, client)

	// A slow reader and a dropped socket can both queue the same client.
	h.unregister <- client
	h.unregister <- client

	require.Eventually(t, func() bool {
		return len(h.snapshot("u1")) == 0
	}, time.Second, time.Millisecond)

	_, ok := <-client.Send
	assert.False(t, ok)
	assert.False(t, client.trySend([]byte("geç kalan frame")), "torn-down client accepts nothing")
}

func TestSendFansOutToEveryConnection(t *testing.T) {
	h := newTestHub()

	first := &Client{Hub: h, UserID: "u1", Send: make(chan []byte, 4)}
	second := &Client{Hub: h, UserID: "u1", Send: make(chan []byte, 4)}
	other := &Client{Hub: h, UserID: "u2", Send: make(chan []byte, 4)}
	h.register <- first
	h.register <- second
	registerAndWait(t, h, other)

	h.Send("u1", []byte("merhaba"))

	for _, c := range []*Client{first, second} {
		select {
		case frame := <-c.Send:
			assert.Equal(t, "merhaba", string(frame))
		case <-time.After(time.Second):
			t.Fatal("connection never received the frame")
		}
	}
	select {
	case <-other.Send:
		t.Fatal("frame leaked to another user")
	default:
	}
}
