package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yavuzozge/homeseer-dimmers/internal/auth"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/config"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/logging"
)

// Message types on the websocket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// Broadcast channels.
const (
	// ChannelLEDs carries every LED table published by the input aggregator.
	ChannelLEDs = "leds"

	// ChannelRuns carries every finished reconcile or ping run.
	ChannelRuns = "runs"
)

// channelPermission is the permission a client's role needs to subscribe.
// A channel missing here does not exist.
var channelPermission = map[string]auth.Permission{
	ChannelLEDs: auth.PermLEDRead,
	ChannelRuns: auth.PermRunsRead,
}

// WSMessage is an outbound websocket frame.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsRequest is an inbound frame. The payload is decoded per type.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// SnapshotFunc returns the current value of a channel, sent to a client
// as soon as it subscribes.
type SnapshotFunc func() any

// Hub fans LED tables and run results out to websocket clients.
type Hub struct {
	cfg       config.WebSocketConfig
	logger    *logging.Logger
	mu        sync.RWMutex
	clients   map[*WSClient]struct{}
	snapshots map[string]SnapshotFunc
}

// WSClient is one websocket connection and the channels it follows.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	// mu guards send against close and the subscription set.
	mu            sync.RWMutex
	send          chan []byte
	closed        bool
	subscriptions map[string]struct{}

	// From the redeemed ticket.
	subject string
	role    auth.Role
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers are vetted by the CORS middleware; the ticket is the credential.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates an empty hub. Run must be started for shutdown to
// disconnect clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:       cfg,
		logger:    logger,
		clients:   make(map[*WSClient]struct{}),
		snapshots: make(map[string]SnapshotFunc),
	}
}

// SetSnapshot registers fn as the initial value source for channel.
func (h *Hub) SetSnapshot(channel string, fn SnapshotFunc) {
	h.mu.Lock()
	h.snapshots[channel] = fn
	h.mu.Unlock()
}

func (h *Hub) snapshot(channel string) SnapshotFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshots[channel]
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.close()
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// Register adds a client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", client.subject, "clients", n)
}

// Unregister removes a client and closes its send queue. Calling it
// twice is harmless.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	client.close()
	h.logger.Debug("websocket client disconnected", "subject", client.subject, "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends payload as an event to every client following channel.
// A client whose queue is full misses the event; the next LED table or
// run supersedes it.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := eventMessage(channel, payload)
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.follows(channel) {
			continue
		}
		if !client.enqueue(data) {
			h.logger.Warn("websocket client too slow, event dropped", "subject", client.subject, "channel", channel)
		}
	}
}

func eventMessage(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// handleWebSocket upgrades a request carrying a ticket from POST /ws-ticket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeError(w, r, ErrCodeUnauthorized, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.redeem(ticket)
	if !ok {
		writeError(w, r, ErrCodeUnauthorized, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestIDFrom(r.Context()))
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		subject:       entry.subject,
		role:          entry.role,
	}
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readDeadline is how long a client may stay silent. Zero (no deadline)
// when pings are disabled.
func readDeadline(cfg config.WebSocketConfig) time.Duration {
	if cfg.PingInterval <= 0 {
		return 0
	}
	return time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	wait := readDeadline(cfg)
	extend := func() error {
		if wait == 0 {
			return nil
		}
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	}
	//nolint:errcheck // a failed deadline surfaces as a read error
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "subject", c.subject, "error", err)
			}
			return
		}
		// Application messages count as liveness too; some browsers
		// never answer protocol pings.
		//nolint:errcheck // a failed deadline surfaces as a read error
		extend()
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	defer c.conn.Close()

	var pings <-chan time.Time
	if cfg.PingInterval > 0 {
		ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
		defer ticker.Stop()
		pings = ticker.C
	}
	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				//nolint:errcheck // connection is going away regardless
				write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-pings:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(req)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(req)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

func decodeChannels(raw json.RawMessage) ([]string, bool) {
	var p WSSubscribePayload
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil || len(p.Channels) == 0 {
		return nil, false
	}
	return p.Channels, true
}

// handleSubscribe is all or nothing: one unknown or forbidden channel
// rejects the request. Accepted channels with a snapshot source get their
// current value right after the acknowledgement.
func (c *WSClient) handleSubscribe(req wsRequest) {
	channels, ok := decodeChannels(req.Payload)
	if !ok {
		c.reply(req.ID, WSTypeError, errorPayload("subscribe needs a non-empty channels list"))
		return
	}
	for _, ch := range channels {
		perm, known := channelPermission[ch]
		if !known {
			c.reply(req.ID, WSTypeError, errorPayload("unknown channel: "+ch))
			return
		}
		if !auth.HasPermission(c.role, perm) {
			c.reply(req.ID, WSTypeError, errorPayload("missing permission "+string(perm)))
			return
		}
	}

	c.mu.Lock()
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": channels})

	for _, ch := range channels {
		fn := c.hub.snapshot(ch)
		if fn == nil {
			continue
		}
		if data, err := eventMessage(ch, fn()); err == nil {
			c.enqueue(data)
		}
	}
}

func (c *WSClient) handleUnsubscribe(req wsRequest) {
	channels, ok := decodeChannels(req.Payload)
	if !ok {
		c.reply(req.ID, WSTypeError, errorPayload("unsubscribe needs a non-empty channels list"))
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

func (c *WSClient) follows(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// enqueue queues data without blocking. It reports false when the queue
// is full; a closed client silently discards.
func (c *WSClient) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close ends the send queue so writePump exits. Safe to call repeatedly.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
