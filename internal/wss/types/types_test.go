package wsstypes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialClient(t *testing.T, buffer int) (*Client, *websocket.Conn) {
	t.Helper()
	accepted := make(chan *Client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- newClient("c1", conn, buffer)
	}))
	t.Cleanup(srv.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = peer.Close() })

	select {
	case c := <-accepted:
		t.Cleanup(func() { _ = c.Close() })
		return c, peer
	case <-time.After(2 * time.Second):
		t.Fatal("connection not accepted")
		return nil, nil
	}
}

func TestClientDeliversQueuedMessages(t *testing.T) {
	c, peer := dialClient(t, 4)

	require.NoError(t, c.WriteJSON(Envelope{Type: PING_SERVER, Status: "ok"}))
	require.NoError(t, c.WriteJSON(Envelope{Type: ARENA_RESET, Status: "ok"}))

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first, second Envelope
	require.NoError(t, peer.ReadJSON(&first))
	require.NoError(t, peer.ReadJSON(&second))
	assert.Equal(t, PING_SERVER, first.Type)
	assert.Equal(t, ARENA_RESET, second.Type)
}

func TestSlowClientIsDropped(t *testing.T) {
	c, _ := dialClient(t, 1)

	payload := map[string]string{"data": strings.Repeat("x", 1<<20)}
	var err error
	for i := 0; i < 512 && err == nil; i++ {
		err = c.WriteJSON(payload)
	}
	require.ErrorIs(t, err, ErrSlowClient)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("slow client was not closed")
	}
	assert.ErrorIs(t, c.WriteJSON(payload), ErrClientClosed)
}
