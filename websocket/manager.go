// Package websocket keeps one realtime channel set per user and delivers
// notification events to every open connection of that user.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// Event is the envelope of every frame sent to a client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type Manager struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	direct     chan userMessage
	done       chan struct{}
	mu         sync.RWMutex
	origin     string
	log        zerolog.Logger
}

type userMessage struct {
	userID string
	data   []byte
}

type Client struct {
	conn    *websocket.Conn
	userID  string
	send    chan []byte
	manager *Manager
}

// NewManager builds a hub. Connections whose Origin header is set and
// differs from allowedOrigin are refused; an empty allowedOrigin accepts all.
func NewManager(log zerolog.Logger, allowedOrigin string) *Manager {
	return &Manager{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan userMessage, 256),
		done:       make(chan struct{}),
		origin:     allowedOrigin,
		log:        log,
	}
}

// Run serializes registration and delivery until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(m.done)
			m.mu.Lock()
			for uid, set := range m.clients {
				for c := range set {
					close(c.send)
				}
				delete(m.clients, uid)
			}
			m.mu.Unlock()
			return

		case c := <-m.register:
			m.mu.Lock()
			set, ok := m.clients[c.userID]
			if !ok {
				set = make(map[*Client]struct{})
				m.clients[c.userID] = set
			}
			set[c] = struct{}{}
			m.mu.Unlock()
			m.log.Debug().Str("userId", c.userID).Msg("websocket client registered")

		case c := <-m.unregister:
			m.remove(c)

		case msg := <-m.direct:
			m.mu.RLock()
			var slow []*Client
			for c := range m.clients[msg.userID] {
				select {
				case c.send <- msg.data:
				default:
					slow = append(slow, c)
				}
			}
			m.mu.RUnlock()
			for _, c := range slow {
				m.remove(c)
			}
		}
	}
}

func (m *Manager) remove(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(m.clients, c.userID)
	}
	m.log.Debug().Str("userId", c.userID).Msg("websocket client unregistered")
}

// SendToUser queues an event for every connection of userID. Delivery is
// best effort: a full queue drops the event.
func (m *Manager) SendToUser(userID, eventType string, payload any) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		m.log.Error().Err(err).Str("type", eventType).Msg("marshal websocket event")
		return
	}
	select {
	case m.direct <- userMessage{userID: userID, data: data}:
	default:
		m.log.Warn().Str("userId", userID).Str("type", eventType).Msg("websocket queue full, event dropped")
	}
}

func (m *Manager) ConnectedUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Handler upgrades GET /ws?token=… after authenticate resolves the token to
// a user id.
func (m *Manager) Handler(authenticate func(token string) (string, error)) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return m.origin == "" || o == "" || o == m.origin
		},
	}
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required", "code": "TOKEN_MISSING"})
			return
		}
		userID, err := authenticate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token", "code": "TOKEN_INVALID"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			m.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		client := &Client{
			conn:    conn,
			userID:  userID,
			send:    make(chan []byte, sendBuffer),
			manager: m,
		}
		hello, _ := json.Marshal(Event{Type: "connected", Payload: gin.H{
			"userId": userID,
			"time":   time.Now().Unix(),
		}})
		client.send <- hello

		select {
		case m.register <- client:
		case <-m.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.log.Warn().Err(err).Str("userId", c.userID).Msg("websocket read error")
			}
			return
		}
		// Clients only listen; inbound frames are discarded.
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
