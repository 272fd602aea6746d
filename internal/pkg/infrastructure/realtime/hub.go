package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 16
)

//client is a connected websocket. Messages are queued on send and written by the
//client's own writer goroutine.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

//Hub keeps track of connected websocket clients and pushes every broadcast message to all of them
type Hub struct {
	log      logging.Logger
	upgrader websocket.Upgrader

	clientsMutex sync.Mutex
	clients      map[*client]bool
	latest       []byte
}

//NewHub creates a hub that accepts websocket connections from any origin
func NewHub(log logging.Logger) *Hub {
	return &Hub{
		log: log.WithField("component", "realtime"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

//ServeHTTP upgrades the request and keeps the connection registered until the client goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("websocket upgrade failed: %s", err.Error())
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.clientsMutex.Lock()
	h.clients[c] = true
	if h.latest != nil {
		c.send <- h.latest
	}
	h.clientsMutex.Unlock()

	go h.write(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) write(c *client) {
	defer c.conn.Close()

	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

//Broadcast queues v as JSON for every connected client without waiting for the writes.
//Clients that have fallen a full buffer behind are dropped.
func (h *Hub) Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Errorf("failed to marshal broadcast message: %s", err.Error())
		return
	}

	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	h.latest = data

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warnf("dropping websocket client that is %d messages behind", sendBuffer)
			h.drop(c)
		}
	}
}

//ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	return len(h.clients)
}

//Close disconnects every client
func (h *Hub) Close() {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	for c := range h.clients {
		h.drop(c)
	}
}

func (h *Hub) remove(c *client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	h.drop(c)
}

//drop must be called with clientsMutex held. Closing send stops the writer, which
//closes the connection.
func (h *Hub) drop(c *client) {
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}
