package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// HubConfig holds websocket connection settings.
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Hub owns the live websocket connections, keyed by connection id, and is
// the Sender the Broadcaster writes through.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	config     HubConfig
	sync       *SyncService
	tokens     *ConnTokens
}

type Client struct {
	hub         *Hub
	id          string
	socket      *websocket.Conn
	send        chan []byte
	closeOnce   sync.Once
	replaced    bool
	connectedAt time.Time
}

func NewHub(syncService *SyncService, tokens *ConnTokens, config HubConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		sync:   syncService,
		tokens: tokens,
	}
}

func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("websocket hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for id, client := range h.clients {
				client.closeSend()
				delete(h.clients, id)
			}
			h.mutex.Unlock()
			log.Info().Msg("websocket hub shutting down")
			return

		case client := <-h.register:
			h.mutex.Lock()
			if old, ok := h.clients[client.id]; ok {
				old.replaced = true
				old.closeSend()
			}
			h.clients[client.id] = client
			total := len(h.clients)
			h.mutex.Unlock()
			log.Info().Str("connection_id", client.id).Int("total_clients", total).Msg("client registered")

		case client := <-h.unregister:
			h.mutex.Lock()
			if current, ok := h.clients[client.id]; ok && current == client {
				delete(h.clients, client.id)
			}
			client.closeSend()
			total := len(h.clients)
			h.mutex.Unlock()
			log.Info().Str("connection_id", client.id).Int("total_clients", total).Msg("client unregistered")
		}
	}
}

// ServeWS upgrades the request and starts the connection's pumps. A valid
// ?token= resumes the connection id it was issued for.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := ""
	if token := r.URL.Query().Get("token"); token != "" {
		resolved, err := h.tokens.Resolve(token)
		if err != nil {
			log.Warn().Err(err).Msg("ignoring connection token")
		} else {
			id = resolved
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	token, err := h.tokens.Issue(id)
	if err != nil {
		log.Error().Err(err).Str("connection_id", id).Msg("failed to issue connection token")
	}

	client := &Client{
		hub:         h,
		id:          id,
		socket:      conn,
		send:        make(chan []byte, h.config.SendBuffer),
		connectedAt: time.Now(),
	}
	if data, ok := encode(Message{Type: EventConnected, Payload: map[string]string{
		"connectionId": id,
		"token":        token,
	}}); ok {
		client.send <- data
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	log.Info().Str("connection_id", id).Str("remote_addr", r.RemoteAddr).Msg("websocket connection established")
}

// Send queues data for connectionID without blocking. A client whose buffer
// is full is dropped.
func (h *Hub) Send(connectionID string, data []byte) bool {
	h.mutex.RLock()
	client, ok := h.clients[connectionID]
	if !ok {
		h.mutex.RUnlock()
		return false
	}
	select {
	case client.send <- data:
		h.mutex.RUnlock()
		return true
	default:
	}
	h.mutex.RUnlock()

	log.Warn().Str("connection_id", connectionID).Msg("client send buffer full, closing connection")
	h.drop(client)
	return false
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) drop(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if current, ok := h.clients[client.id]; ok && current == client {
		delete(h.clients, client.id)
	}
	client.closeSend()
}

func (h *Hub) isReplaced(client *Client) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return client.replaced
}

// closeSend must be called with the hub mutex held for writing.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.socket.Close()
		if !c.hub.isReplaced(c) {
			c.hub.sync.Disconnect(context.Background(), c.id)
		}
	}()

	cfg := c.hub.config
	c.socket.SetReadLimit(cfg.MaxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.id).Msg("unexpected websocket close")
			}
			return
		}
		c.socket.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		c.hub.sync.HandleMessage(context.Background(), c.id, message)
	}
}

func (c *Client) writePump() {
	cfg := c.hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("connection_id", c.id).Msg("failed to write websocket message")
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
