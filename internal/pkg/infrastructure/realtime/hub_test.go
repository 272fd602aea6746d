package realtime

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThatBroadcastReachesConnectedClients(t *testing.T) {
	hub := NewHub(logging.NewLogger())
	server := httptest.NewServer(hub)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(map[string]interface{}{"device_id": 7, "consumption": 1.5})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg := map[string]interface{}{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, 7.0, msg["device_id"])
	assert.Equal(t, 1.5, msg["consumption"])
}

func TestThatNewClientsReceiveTheLatestMessage(t *testing.T) {
	hub := NewHub(logging.NewLogger())
	server := httptest.NewServer(hub)
	defer server.Close()

	hub.Broadcast(map[string]string{"hello": "world"})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg := map[string]string{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "world", msg["hello"])
}

func TestThatClosedClientsAreRemoved(t *testing.T) {
	hub := NewHub(logging.NewLogger())
	server := httptest.NewServer(hub)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestThatBroadcastDoesNotWaitForClientWrites(t *testing.T) {
	hub := NewHub(logging.NewLogger())

	// no writer is running for this client, so nothing ever drains its queue
	idle := &client{send: make(chan []byte, sendBuffer)}
	hub.clients[idle] = true

	start := time.Now()
	hub.Broadcast(map[string]int{"consumption": 1})

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("broadcast took %s although no client was written to", elapsed)
	}
	if len(idle.send) != 1 {
		t.Errorf("expected the message to be queued for the client, found %d queued", len(idle.send))
	}
}

func TestThatClientsThatFallBehindAreDropped(t *testing.T) {
	hub := NewHub(logging.NewLogger())

	stalled := &client{send: make(chan []byte, sendBuffer)}
	hub.clients[stalled] = true

	for i := 0; i <= sendBuffer; i++ {
		hub.Broadcast(map[string]int{"seq": i})
	}

	if hub.ClientCount() != 0 {
		t.Errorf("expected the stalled client to be dropped, %d clients remain", hub.ClientCount())
	}

	if _, open := <-stalled.send; !open {
		t.Errorf("expected the queued messages to remain readable before the queue closes")
	}
}

func TestThatCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(logging.NewLogger())
	server := httptest.NewServer(hub)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected a normal close from the hub, got %v", err)
	}
}
