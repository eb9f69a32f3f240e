package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and intervals for Home Assistant communication.
const (
	// defaultConnectTimeout bounds dialling plus authentication.
	defaultConnectTimeout = 10 * time.Second

	// defaultRequestTimeout bounds a command round trip when the caller's
	// context has no deadline.
	defaultRequestTimeout = 30 * time.Second

	// defaultWriteTimeout is the timeout for a single frame write.
	defaultWriteTimeout = 5 * time.Second

	// defaultReconnectInterval is the initial delay between reconnection attempts.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval is the maximum delay between reconnection attempts.
	maxReconnectInterval = 2 * time.Minute

	// notificationQueueSize is the buffer between the reader and the
	// notification worker.
	notificationQueueSize = 256
)

// Config holds Home Assistant connection configuration.
type Config struct {
	// URL is the websocket endpoint, for example
	// "ws://homeassistant.local:8123/api/websocket".
	URL string

	// Token is a long-lived access token.
	Token string

	// ConnectTimeout bounds dialling plus authentication.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// RequestTimeout bounds a command when the caller sets no deadline.
	// Default: 30 seconds.
	RequestTimeout time.Duration

	// ReconnectInterval is the initial delay between reconnection attempts.
	// Default: 5 seconds.
	ReconnectInterval time.Duration

	// MaxReconnectInterval caps the reconnection backoff.
	// Default: 2 minutes.
	MaxReconnectInterval time.Duration

	// Events lists extra event types to subscribe to, for OnEvent handlers.
	Events []string
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Stats holds client counters.
type Stats struct {
	RequestsSent         uint64
	RequestsFailed       uint64
	EventsReceived       uint64
	Reconnects           uint64
	HomeAssistantVersion string
}

// notification is queued work for the notification worker.
type notification struct {
	change    *stateChange
	eventType string
	eventData json.RawMessage
}

type stateChange struct {
	entityID string
	state    string
}

// Client is an authenticated Home Assistant websocket connection.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	connMu    sync.RWMutex
	conn      *websocket.Conn
	connected bool
	haVersion string

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex

	nextID    atomic.Int64
	pendingMu sync.Mutex
	pending   map[int64]chan message

	states *stateStore

	handlersMu    sync.RWMutex
	eventHandlers map[string][]func(json.RawMessage)

	notifications chan notification

	logger       Logger
	onConnect    func()
	onDisconnect func(error)
	callbackMu   sync.RWMutex

	reconnecting atomic.Bool
	done         *closeOnce
	wg           sync.WaitGroup

	requestsSent   atomic.Uint64
	requestsFailed atomic.Uint64
	eventsReceived atomic.Uint64
	reconnects     atomic.Uint64
}

// Connect dials Home Assistant, authenticates, subscribes to state changes
// and loads the current entity states.
//
// Parameters:
//   - ctx: Context for the initial connection (cancellation aborts it)
//   - cfg: Connection configuration
//
// Returns:
//   - *Client: Connected client, ready for requests
//   - error: ErrConnectionFailed or ErrAuthFailed wrapped with details
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	return ConnectWithLogger(ctx, cfg, noopLogger{})
}

// ConnectWithLogger is Connect with a logger attached before the first
// connection attempt.
func ConnectWithLogger(ctx context.Context, cfg Config, logger Logger) (*Client, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Client{
		cfg:           cfg,
		dialer:        &websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout},
		pending:       make(map[int64]chan message),
		states:        newStateStore(),
		eventHandlers: make(map[string][]func(json.RawMessage)),
		notifications: make(chan notification, notificationQueueSize),
		logger:        logger,
		done:          newCloseOnce(),
	}

	conn, version, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.setConn(conn, version)

	c.wg.Add(2) //nolint:mnd // receive loop and notification worker
	go c.receiveLoop()
	go c.notificationWorker()

	if err := c.initialise(ctx, false); err != nil {
		c.Close() //nolint:errcheck,gosec // best-effort cleanup on failed connect
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.logger.Info("connected to home assistant", "url", cfg.URL, "ha_version", version)
	return c, nil
}

func validateConfig(cfg *Config) error {
	if cfg.URL == "" {
		return fmt.Errorf("%w: url is required", ErrConnectionFailed)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("%w: invalid url: %w", ErrConnectionFailed, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: unsupported scheme %q (use ws or wss)", ErrConnectionFailed, u.Scheme)
	}
	if cfg.Token == "" {
		return fmt.Errorf("%w: access token is required", ErrConnectionFailed)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = maxReconnectInterval
	}
	return nil
}

// SetLogger replaces the client's logger.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.callbackMu.Lock()
	c.logger = logger
	c.callbackMu.Unlock()
}

// SetOnConnect sets a callback run after every successful (re)connection.
func (c *Client) SetOnConnect(fn func()) {
	c.callbackMu.Lock()
	c.onConnect = fn
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(error)) {
	c.callbackMu.Lock()
	c.onDisconnect = fn
	c.callbackMu.Unlock()
}

func (c *Client) log() Logger {
	c.callbackMu.RLock()
	defer c.callbackMu.RUnlock()
	return c.logger
}

// dial opens the websocket and performs the auth handshake.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: dialing %s: %w", ErrConnectionFailed, c.cfg.URL, err)
	}

	deadline, _ := dialCtx.Deadline()
	version, err := authenticate(conn, c.cfg.Token, deadline)
	if err != nil {
		conn.Close() //nolint:errcheck,gosec // handshake already failed
		return nil, "", err
	}

	// Handshake deadlines must not leak into the receive loop.
	conn.SetReadDeadline(time.Time{})  //nolint:errcheck,gosec // clearing deadline
	conn.SetWriteDeadline(time.Time{}) //nolint:errcheck,gosec // clearing deadline
	return conn, version, nil
}

// authenticate runs auth_required -> auth -> auth_ok.
func authenticate(conn *websocket.Conn, token string, deadline time.Time) (string, error) {
	conn.SetReadDeadline(deadline)  //nolint:errcheck,gosec // error surfaces on read
	conn.SetWriteDeadline(deadline) //nolint:errcheck,gosec // error surfaces on write

	var hello message
	if err := conn.ReadJSON(&hello); err != nil {
		return "", fmt.Errorf("%w: reading auth_required: %w", ErrConnectionFailed, err)
	}
	if hello.Type != typeAuthRequired {
		return "", fmt.Errorf("%w: expected %s, got %q", ErrConnectionFailed, typeAuthRequired, hello.Type)
	}

	if err := conn.WriteJSON(authMessage{Type: typeAuth, AccessToken: token}); err != nil {
		return "", fmt.Errorf("%w: sending auth: %w", ErrConnectionFailed, err)
	}

	var reply message
	if err := conn.ReadJSON(&reply); err != nil {
		return "", fmt.Errorf("%w: reading auth reply: %w", ErrConnectionFailed, err)
	}
	switch reply.Type {
	case typeAuthOK:
		return reply.HAVersion, nil
	case typeAuthInvalid:
		return "", fmt.Errorf("%w: %s", ErrAuthFailed, reply.Message)
	default:
		return "", fmt.Errorf("%w: unexpected auth reply %q", ErrConnectionFailed, reply.Type)
	}
}

// initialise subscribes to events and loads states on a fresh connection.
// After a reconnect, states that changed while disconnected are reported.
func (c *Client) initialise(ctx context.Context, notifyChanges bool) error {
	if err := c.subscribe(ctx, eventStateChanged); err != nil {
		return err
	}
	for _, eventType := range c.cfg.Events {
		if err := c.subscribe(ctx, eventType); err != nil {
			return err
		}
	}

	var states []entityState
	if err := c.call(ctx, cmdGetStates, nil, &states); err != nil {
		return err
	}
	changed := c.states.replaceAll(states)
	if notifyChanges {
		for _, ch := range changed {
			c.enqueue(notification{change: &stateChange{entityID: ch.EntityID, state: ch.State}})
		}
	}
	return nil
}

func (c *Client) subscribe(ctx context.Context, eventType string) error {
	return c.call(ctx, cmdSubscribeEvents, map[string]any{"event_type": eventType}, nil)
}

func (c *Client) setConn(conn *websocket.Conn, version string) {
	c.connMu.Lock()
	c.conn = conn
	c.connected = true
	c.haVersion = version
	c.connMu.Unlock()
}

func (c *Client) currentConn() *websocket.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

// IsConnected reports whether an authenticated connection is open.
func (c *Client) IsConnected() bool {
	if c.isClosed() {
		return false
	}
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// receiveLoop reads frames and dispatches them until the client closes.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	for {
		if c.isClosed() {
			return
		}

		conn := c.currentConn()
		if conn == nil {
			if !c.reconnect() {
				return
			}
			continue
		}

		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if c.isClosed() {
				return
			}
			c.handleDisconnect(conn, err)
			if !c.reconnect() {
				return
			}
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg message) {
	switch msg.Type {
	case typeResult, typePong:
		c.pendingMu.Lock()
		ch, ok := c.pending[msg.ID]
		c.pendingMu.Unlock()
		if ok {
			select {
			case ch <- msg:
			default:
			}
		}
	case typeEvent:
		c.eventsReceived.Add(1)
		c.handleEvent(msg.Event)
	default:
		c.log().Debug("ignoring home assistant message", "type", msg.Type)
	}
}

func (c *Client) handleEvent(ev *event) {
	if ev == nil {
		return
	}
	if ev.EventType != eventStateChanged {
		c.enqueue(notification{eventType: ev.EventType, eventData: ev.Data})
		return
	}

	var data stateChangedData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		c.log().Warn("malformed state_changed event", "error", err)
		return
	}

	// A removed entity has no new state.
	state := stateUnavailable
	if data.NewState != nil {
		state = data.NewState.State
	}
	if !c.states.set(data.EntityID, state) {
		return
	}
	c.enqueue(notification{change: &stateChange{entityID: data.EntityID, state: state}})
}

// enqueue hands work to the notification worker, blocking while the queue
// is full so that no state change is lost.
func (c *Client) enqueue(n notification) {
	select {
	case c.notifications <- n:
	case <-c.done.Done():
	}
}

// notificationWorker delivers state changes and events in arrival order.
func (c *Client) notificationWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			return
		case n := <-c.notifications:
			c.deliver(n)
		}
	}
}

func (c *Client) deliver(n notification) {
	defer func() {
		if r := recover(); r != nil {
			c.log().Error("panic in home assistant handler", "panic", r)
		}
	}()

	if n.change != nil {
		c.states.notify(n.change.entityID, n.change.state)
		return
	}

	c.handlersMu.RLock()
	handlers := append([]func(json.RawMessage){}, c.eventHandlers[n.eventType]...)
	c.handlersMu.RUnlock()
	for _, h := range handlers {
		h(n.eventData)
	}
}

// OnEvent registers a handler for an event type listed in Config.Events.
func (c *Client) OnEvent(eventType string, handler func(data json.RawMessage)) {
	c.handlersMu.Lock()
	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
	c.handlersMu.Unlock()
}

// handleDisconnect marks the connection lost and fails pending requests.
func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.connMu.Unlock()
	conn.Close() //nolint:errcheck,gosec // connection already broken

	c.failPending()
	c.log().Warn("home assistant connection lost", "error", err)

	c.callbackMu.RLock()
	onDisconnect := c.onDisconnect
	c.callbackMu.RUnlock()
	if onDisconnect != nil {
		onDisconnect(err)
	}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		select {
		case ch <- message{ID: id, Type: typeDisconnected}:
		default:
		}
	}
}

// reconnect dials with exponential backoff until it succeeds or the client
// closes. It returns false when the client closed.
func (c *Client) reconnect() bool {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return !c.isClosed()
	}
	defer c.reconnecting.Store(false)

	interval := c.cfg.ReconnectInterval
	for {
		select {
		case <-c.done.Done():
			return false
		case <-time.After(interval):
		}

		c.log().Info("attempting reconnection to home assistant", "url", c.cfg.URL)

		conn, version, err := c.dial(context.Background())
		if err != nil {
			interval = c.nextInterval(interval, err)
			continue
		}

		c.setConn(conn, version)
		c.reconnects.Add(1)
		c.finalizeReconnection()
		return true
	}
}

func (c *Client) nextInterval(interval time.Duration, err error) time.Duration {
	c.log().Warn("reconnection failed", "error", err, "next_attempt", interval)
	next := interval * 3 / 2 //nolint:mnd // 1.5x backoff
	if next > c.cfg.MaxReconnectInterval {
		next = c.cfg.MaxReconnectInterval
	}
	return next
}

// finalizeReconnection restores subscriptions in the background; the
// receive loop must be running to read the replies.
func (c *Client) finalizeReconnection() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
		defer cancel()

		if err := c.initialise(ctx, true); err != nil {
			c.log().Error("restoring home assistant subscriptions failed", "error", err)
			// Dropping the connection makes the receive loop try again.
			if conn := c.currentConn(); conn != nil {
				conn.Close() //nolint:errcheck,gosec // forcing reconnect
			}
			return
		}

		c.log().Info("reconnected to home assistant")
		c.callbackMu.RLock()
		onConnect := c.onConnect
		c.callbackMu.RUnlock()
		if onConnect != nil {
			onConnect()
		}
	}()
}

// call sends a command and waits for its result.
func (c *Client) call(ctx context.Context, command string, fields map[string]any, out any) error {
	if c.isClosed() {
		return ErrClosed
	}
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	reply := make(chan message, 1)
	c.pendingMu.Lock()
	c.pending[id] = reply
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	frame := make(map[string]any, len(fields)+2) //nolint:mnd // id and type
	for k, v := range fields {
		frame[k] = v
	}
	frame["id"] = id
	frame["type"] = command

	if err := c.write(conn, frame); err != nil {
		c.requestsFailed.Add(1)
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, command, err)
	}
	c.requestsSent.Add(1)

	select {
	case msg := <-reply:
		return c.decodeReply(command, msg, out)
	case <-ctx.Done():
		c.requestsFailed.Add(1)
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, command, ctx.Err())
	case <-c.done.Done():
		return ErrClosed
	}
}

func (c *Client) write(conn *websocket.Conn, frame any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)) //nolint:errcheck,gosec // error surfaces on write
	return conn.WriteJSON(frame)
}

func (c *Client) decodeReply(command string, msg message, out any) error {
	switch msg.Type {
	case typeDisconnected:
		c.requestsFailed.Add(1)
		return fmt.Errorf("%w: %s", ErrNotConnected, command)
	case typePong:
		return nil
	}

	if msg.Success == nil || !*msg.Success {
		c.requestsFailed.Add(1)
		cmdErr := &CommandError{Command: command}
		if msg.Error != nil {
			cmdErr.Code = msg.Error.Code
			cmdErr.Message = msg.Error.Message
		}
		return cmdErr
	}

	if out == nil || len(msg.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Result, out); err != nil {
		return fmt.Errorf("%w: %s: decoding result: %w", ErrRequestFailed, command, err)
	}
	return nil
}

// HealthCheck sends a ping and waits for the pong.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.call(ctx, cmdPing, nil, nil); err != nil {
		return fmt.Errorf("homeassistant health check: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	c.connMu.RLock()
	version := c.haVersion
	c.connMu.RUnlock()
	return Stats{
		RequestsSent:         c.requestsSent.Load(),
		RequestsFailed:       c.requestsFailed.Load(),
		EventsReceived:       c.eventsReceived.Load(),
		Reconnects:           c.reconnects.Load(),
		HomeAssistantVersion: version,
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// Close shuts the connection and stops background goroutines.
// It is safe to call multiple times.
func (c *Client) Close() error {
	if c.isClosed() {
		return nil
	}
	c.done.Close()

	var closeErr error
	c.connMu.Lock()
	if c.conn != nil {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) //nolint:errcheck,gosec // best effort
		c.writeMu.Unlock()
		if err := c.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			closeErr = err
		}
		c.conn = nil
	}
	c.connected = false
	c.connMu.Unlock()

	c.wg.Wait()
	c.log().Info("home assistant connection closed")
	return closeErr
}
