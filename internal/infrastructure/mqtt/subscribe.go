package mqtt

import (
	"fmt"
	"slices"
	"sync"
)

// route is a subscription remembered for replay after reconnect.
type route struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// routeTable holds the client's subscriptions keyed by topic filter.
type routeTable struct {
	mu     sync.RWMutex
	routes map[string]route
}

func newRouteTable() *routeTable {
	return &routeTable{routes: make(map[string]route)}
}

func (t *routeTable) put(r route) {
	t.mu.Lock()
	t.routes[r.topic] = r
	t.mu.Unlock()
}

func (t *routeTable) drop(topic string) {
	t.mu.Lock()
	delete(t.routes, topic)
	t.mu.Unlock()
}

func (t *routeTable) all() []route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]route, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	return out
}

// Subscribe registers handler for topic, which may use the + and #
// wildcards (dimmersync/command/+ for every command). Re-subscribing to the
// same filter replaces its handler.
//
// The subscription is remembered and replayed after every reconnect. It is
// only remembered once the broker has acknowledged it.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or
//     ErrSubscribeFailed
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: %s: nil handler", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	r := route{topic: topic, qos: qos, handler: handler}
	c.routes.put(r)
	if err := wait(c.conn.Subscribe(topic, qos, c.dispatch(handler)), defaultAckTimeout); err != nil {
		c.routes.drop(topic)
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// Subscriptions returns the remembered topic filters in sorted order.
func (c *Client) Subscriptions() []string {
	routes := c.routes.all()
	topics := make([]string, 0, len(routes))
	for _, r := range routes {
		topics = append(topics, r.topic)
	}
	slices.Sort(topics)
	return topics
}
