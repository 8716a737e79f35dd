package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/smilemakc/playbookflow/internal/events"
	"github.com/smilemakc/playbookflow/internal/logging"
)

// upgrader allows all origins: this daemon has no browser-facing CORS
// concerns of its own beyond what the UI front-end configures.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const clientSendBuffer = 256

// wsClient is one connected UI session.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *wsHub
}

// wsHub multiplexes events.Bus traffic to every connected client:
// register/unregister/broadcast channels driven by a single goroutine.
type wsHub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte

	logger *logging.Logger
}

func newWSHub(logger *logging.Logger) *wsHub {
	h := &wsHub{
		clients:    make(map[string]*wsClient),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *wsHub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow client: drop rather than block the hub loop.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount reports how many UI sessions are currently connected.
func (h *wsHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast fans an already-encoded message out to every connected client.
func (h *wsHub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// wsFrame is the wire shape of a relayed bus event.
type wsFrame struct {
	Type           string `json:"type"`
	NodeID         string `json:"node_id,omitempty"`
	NodeStatus     string `json:"node_status,omitempty"`
	WorkflowStatus string `json:"workflow_status,omitempty"`
	Content        string `json:"content,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// pump relays Bus events onto the hub's broadcast channel until ctx-like
// stop is signaled by the channel closing (the bus closes a listener's
// channel on Unsubscribe).
func (h *wsHub) pump(ch <-chan events.Event) {
	for ev := range ch {
		frame := wsFrame{Timestamp: ev.Timestamp.Format(time.RFC3339Nano)}
		switch ev.Kind {
		case events.KindNode:
			frame.Type = "node_event"
			frame.NodeID = ev.NodeID
			frame.NodeStatus = ev.NodeStatus.String()
		case events.KindWorkflow:
			frame.Type = "workflow_event"
			frame.WorkflowStatus = ev.WorkflowStatus.String()
			frame.Content = ev.Content
		}
		data, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		h.Broadcast(data)
	}
}

// ServeWS upgrades the request to a websocket connection, registers a new
// client, and sends a welcome frame.
func (h *wsHub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientSendBuffer), hub: h}
	h.register <- client

	welcome, _ := json.Marshal(map[string]any{
		"type":      "control",
		"message":   "Connected to playbookflow control server",
		"client_id": client.id,
		"timestamp": time.Now().Format(time.RFC3339Nano),
	})
	conn.WriteMessage(websocket.TextMessage, welcome)

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump drains and discards inbound frames purely to detect
// disconnects; this server's clients only ever read.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
