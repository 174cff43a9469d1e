package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub configuration
const (
	MaxClients    = 100
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
	sendBufferLen = 256
)

// Message is what the hub broadcasts to connected presentation clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// GridUpdate announces that a slot merge was persisted. Version is monotonic
// so poll-model consumers can detect changes without a socket.
type GridUpdate struct {
	Date    string `json:"date"`
	Slot    string `json:"slot"`
	Version uint64 `json:"version"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans grid-update notifications out to WebSocket clients and tracks the
// current grid version. The grid itself is never pushed; clients re-read it
// through the API after a notification.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	version    uint64
	log        *zap.SugaredLogger
}

// NewHub creates a hub; call Run in a goroutine to start it.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, sendBufferLen),
		register:   make(chan *client),
		unregister: make(chan *client),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log,
	}
}

// Run processes register/unregister/broadcast events until Shutdown.
func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			return

		case c := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxClients {
				h.mu.Unlock()
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				c.conn.Close()
				h.log.Warnw("WebSocket client rejected: max clients reached", "max", MaxClients)
				continue
			}
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Infow("WebSocket client connected", "total", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Infow("WebSocket client disconnected", "total", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.log.Errorw("Error marshaling broadcast message", "error", err)
				continue
			}

			h.mu.Lock()
			var dead []*client
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					dead = append(dead, c)
				}
			}
			for _, c := range dead {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		}
	}
}

// Shutdown stops the hub and closes all client connections.
func (h *Hub) Shutdown() {
	close(h.shutdown)

	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
	}
	h.clients = make(map[*client]bool)
	h.mu.Unlock()
}

// NotifyUpdated bumps the grid version and broadcasts a grid_updated message.
// Dropping the broadcast when the hub is saturated is fine: the version
// counter still moves, and clients re-pull the grid anyway.
func (h *Hub) NotifyUpdated(date, slotLabel string) uint64 {
	h.mu.Lock()
	h.version++
	v := h.version
	h.mu.Unlock()

	msg := Message{
		Type: "grid_updated",
		Data: GridUpdate{Date: date, Slot: slotLabel, Version: v},
		Time: time.Now().Format(time.RFC3339),
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warnw("Broadcast buffer full, dropping notification", "version", v)
	}
	return v
}

// Version returns the current grid version.
func (h *Hub) Version() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version
}

// HandleWebSocket upgrades the request and attaches the client to the hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxClients
	h.mu.RUnlock()
	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("WebSocket upgrade error", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferLen)}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

// writePump writes messages and keep-alive pings to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and closes are processed. Clients
// send no commands; the protocol is notify-only.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debugw("WebSocket read error", "error", err)
			}
			break
		}
	}
}
