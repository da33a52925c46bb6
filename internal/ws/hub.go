// Package ws pushes server-side events (new turns, source changes) to
// connected browsers over WebSocket
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is the envelope for every message pushed to clients
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Event types pushed by the server
const (
	EventTurnAppended  = "turn_appended"
	EventSourceChanged = "source_changed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin dev frontends connect directly
		return true
	},
}

// Hub fans events out to every connected client. Clients only listen;
// inbound frames other than pings are ignored.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

// NewHub creates a hub; call Run in a goroutine before serving connections
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
	}
}

// Run owns the client set; all membership changes go through its channels
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			log.Printf("websocket client connected: %s (%d total)", c.id, len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.closeSend()
				log.Printf("websocket client disconnected: %s (%d total)", c.id, len(h.clients))
			}
		case payload := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// slow consumer, drop it
					delete(h.clients, c)
					c.closeSend()
				}
			}
		}
	}
}

// Broadcast sends an event to every connected client
func (h *Hub) Broadcast(eventType string, data interface{}) {
	payload, err := json.Marshal(Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("failed to marshal %s event: %v", eventType, err)
		return
	}
	h.broadcast <- payload
}

// HandleWS upgrades the request and attaches the connection to the hub
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	cl := &client{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.register <- cl

	go cl.writePump()
	go cl.readPump()
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	closed int32
}

func (c *client) closeSend() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		close(c.send)
	}
}

// readPump drains inbound frames to keep pong handling alive; client
// payloads are not acted on
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
