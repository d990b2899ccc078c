package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/snakegame/game/input"
	"github.com/wricardo/mcp-training/snakegame/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Time allowed for a key message to be applied.
	keyTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is what the hub sends to clients
type Message struct {
	SessionID string         `json:"session_id"`
	Event     string         `json:"event"`
	Frame     *service.Frame `json:"frame,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// KeyMessage is what clients send: either a key name ("ArrowDown", "down")
// or a browser key code (40)
type KeyMessage struct {
	Key  string `json:"key,omitempty"`
	Code int    `json:"code,omitempty"`
}

// Resolve maps the message to an arrow key, preferring the code
func (m KeyMessage) Resolve() input.Key {
	if m.Code != 0 {
		return input.FromCode(m.Code)
	}
	return input.FromName(m.Key)
}

// KeyHandler applies a key pressed by a client of sessionID
type KeyHandler func(ctx context.Context, sessionID string, key input.Key) error

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by session ID
	sessions map[string]map[*Client]bool

	// Outbound messages for a session
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Messages for a single client
	direct chan directMessage

	// Count requests, answered from the event loop
	count chan countRequest

	keys KeyHandler
	done chan struct{}
}

type directMessage struct {
	client  *Client
	message *Message
}

type countRequest struct {
	sessionID string
	reply     chan int
}

// NewHub creates a new WebSocket hub. keys may be nil, in which case inbound
// messages are ignored.
func NewHub(keys KeyHandler) *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan directMessage, 16),
		count:      make(chan countRequest),
		keys:       keys,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop and blocks until ctx is done. Every client
// is disconnected on return.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for _, clients := range h.sessions {
			for client := range clients {
				h.unregisterClient(client)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case dm := <-h.direct:
			h.sendTo(dm.client, dm.message)

		case req := <-h.count:
			req.reply <- len(h.sessions[req.sessionID])
		}
	}
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// BroadcastFrame sends a frame to all clients watching a session
func (h *Hub) BroadcastFrame(sessionID string, frame *service.Frame) {
	h.publish(&Message{
		SessionID: sessionID,
		Event:     "frame",
		Frame:     frame,
	})
}

// BroadcastEvent sends a bare event to all clients in a session
func (h *Hub) BroadcastEvent(sessionID, event string) {
	h.publish(&Message{SessionID: sessionID, Event: event})
}

// Clients returns the number of clients watching a session
func (h *Hub) Clients(sessionID string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{sessionID: sessionID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) publish(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	log.Debug().
		Str("session", client.sessionID).
		Int("clients", len(h.sessions[client.sessionID])).
		Msg("Client registered")
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.sessions[client.sessionID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			// Clean up empty sessions
			if len(clients) == 0 {
				delete(h.sessions, client.sessionID)
			}

			log.Debug().
				Str("session", client.sessionID).
				Int("clients", len(clients)).
				Msg("Client unregistered")
		}
	}
}

// sendTo delivers a message to one client if it is still registered
func (h *Hub) sendTo(client *Client, message *Message) {
	if !h.sessions[client.sessionID][client] {
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal message")
		return
	}
	select {
	case client.send <- data:
	default:
		h.unregisterClient(client)
	}
}

// broadcastMessage sends a message to all clients in a session
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal broadcast message")
		return
	}

	if clients, ok := h.sessions[message.SessionID]; ok {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				// Client's send channel is full, drop it
				h.unregisterClient(client)
			}
		}
	}
}

// handleKey applies an inbound message and reports failures to the sender
func (c *Client) handleKey(data []byte) {
	if c.hub.keys == nil {
		return
	}

	var msg KeyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(&Message{SessionID: c.sessionID, Event: "error", Error: "invalid message"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), keyTimeout)
	defer cancel()
	if err := c.hub.keys(ctx, c.sessionID, msg.Resolve()); err != nil {
		c.reply(&Message{SessionID: c.sessionID, Event: "error", Error: err.Error()})
	}
}

// reply queues a message for this client only
func (c *Client) reply(message *Message) {
	select {
	case c.hub.direct <- directMessage{client: c, message: message}:
	case <-c.hub.done:
	}
}

// readPump pumps key messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("session", c.sessionID).Msg("WebSocket error")
			}
			break
		}
		c.handleKey(data)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
