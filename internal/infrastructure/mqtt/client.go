package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client writes to.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler receives one inbound message.
//
// paho calls handlers from its own goroutines. A returned error is logged
// and otherwise ignored; the message is acknowledged either way.
type MessageHandler func(topic string, payload []byte) error

// Client is the service's connection to the broker.
//
// It owns the retained status topic, remembers subscriptions so they
// survive reconnects, and keeps handler panics away from paho's router.
// All methods are safe for concurrent use.
type Client struct {
	conn   pahomqtt.Client
	cfg    config.MQTTConfig
	broker string

	online atomic.Bool
	routes *routeTable

	hooksMu      sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)

	logMu  sync.RWMutex
	logger Logger
}

// newClient builds an unconnected client. Connect dials it.
func newClient(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:    cfg,
		broker: brokerURL(cfg),
		routes: newRouteTable(),
		logger: noopLogger{},
	}
}

// Connect dials the broker described by cfg and blocks until the first
// CONNACK or defaultConnectTimeout, whichever comes first.
//
// Once connected, paho reconnects on its own with the backoff from
// cfg.Reconnect. Every successful (re)connect restores subscriptions and
// republishes the retained "online" status; the broker publishes the
// "offline" will if the process dies without Close.
//
// Parameters:
//   - cfg: The mqtt section of config.yaml
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed wrapping the cause
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)

	opts := newClientOptions(cfg)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log().Info("reconnecting to broker", "broker", c.broker)
	})

	c.conn = pahomqtt.NewClient(opts)
	if err := wait(c.conn.Connect(), defaultConnectTimeout); err != nil {
		// With ConnectRetry paho keeps dialling in the background.
		c.conn.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.broker, err)
	}

	// The OnConnect handler runs on its own goroutine and may lag behind
	// the CONNACK.
	c.online.Store(true)
	return c, nil
}

// connected runs on every successful connect, including the first.
func (c *Client) connected() {
	c.online.Store(true)

	for _, r := range c.routes.all() {
		if err := wait(c.conn.Subscribe(r.topic, r.qos, c.dispatch(r.handler)), defaultAckTimeout); err != nil {
			c.log().Warn("restoring subscription failed", "topic", r.topic, "error", err)
		}
	}

	c.conn.Publish(Topics{}.SystemStatus(), c.qos(), true, statusOnline(c.cfg.Broker.ClientID))

	c.hooksMu.RLock()
	hook := c.onConnect
	c.hooksMu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) lost(err error) {
	c.online.Store(false)

	c.hooksMu.RLock()
	hook := c.onDisconnect
	c.hooksMu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

// Close publishes a graceful "offline" status and disconnects. It is safe
// to call on a client that never connected.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	if c.IsConnected() {
		status := c.conn.Publish(Topics{}.SystemStatus(), c.qos(), true, statusShutdown(c.cfg.Broker.ClientID))
		if err := wait(status, defaultAckTimeout); err != nil {
			c.log().Warn("publishing offline status failed", "error", err)
		}
	}

	c.conn.Disconnect(disconnectQuiesceMillis)
	c.online.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return fmt.Errorf("%w: %s", ErrNotConnected, c.broker)
	}
	return nil
}

// IsConnected reports whether the client currently holds a broker session.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.conn != nil && c.conn.IsConnected()
}

// SetOnConnect registers a hook run after every (re)connect, once
// subscriptions are restored. Pass nil to clear it.
func (c *Client) SetOnConnect(hook func()) {
	c.hooksMu.Lock()
	c.onConnect = hook
	c.hooksMu.Unlock()
}

// SetOnDisconnect registers a hook run when the connection drops
// unexpectedly. Pass nil to clear it.
func (c *Client) SetOnDisconnect(hook func(err error)) {
	c.hooksMu.Lock()
	c.onDisconnect = hook
	c.hooksMu.Unlock()
}

// SetLogger replaces the client's logger. nil discards output.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logMu.Lock()
	c.logger = logger
	c.logMu.Unlock()
}

func (c *Client) log() Logger {
	c.logMu.RLock()
	defer c.logMu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS) //nolint:gosec // validated to 0-2 by config
}

// dispatch adapts a MessageHandler to paho, logging handler errors and
// recovering panics so one bad payload cannot stop the router.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
