package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

// Logger defines the logging interface used by the Cache.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Lister is the part of the device registry the cache needs.
type Lister interface {
	ListDevices(ctx context.Context) ([]zwave.Device, error)
}

// Predicate selects the devices a Cache keeps.
type Predicate func(zwave.Device) bool

// Cache memoises a filtered device list for a validity window.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Devices is expected to be
//     called from a single operation loop; the lock only protects readers
//     such as Snapshot.
type Cache struct {
	lister Lister
	name   string
	logger Logger
	now    func() time.Time

	mu           sync.RWMutex
	devices      []zwave.Device
	discoveredAt time.Time
	discovered   bool
}

// New creates a cache over lister. name is used in log records.
func New(lister Lister, name string) *Cache {
	return &Cache{
		lister: lister,
		name:   name,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// Devices returns the cached devices matching predicate, rediscovering when
// the cache is empty or older than validity.
//
// A validity of zero (or less) rediscovers on every call. When the registry
// call fails the previous list is kept and the error is returned.
//
// Parameters:
//   - ctx: Context for the registry round trip
//   - predicate: Filter applied to a fresh device list
//   - validity: How long a discovery result stays fresh
//
// Returns:
//   - []zwave.Device: Copies of the matching devices in registry order
//   - error: Wrapped ErrDiscoveryFailed if the registry call fails
func (c *Cache) Devices(ctx context.Context, predicate Predicate, validity time.Duration) ([]zwave.Device, error) {
	now := c.now()

	c.mu.RLock()
	fresh := c.discovered && validity > 0 && now.Sub(c.discoveredAt) < validity
	c.mu.RUnlock()

	if !fresh {
		if err := c.discover(ctx, predicate, now); err != nil {
			return nil, err
		}
	}

	devices, _ := c.Snapshot()
	return devices, nil
}

// Snapshot returns the cached devices and the time of the last discovery
// without contacting the registry. The time is zero before the first discovery.
func (c *Cache) Snapshot() ([]zwave.Device, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	devices := make([]zwave.Device, len(c.devices))
	for i := range c.devices {
		devices[i] = c.devices[i].Clone()
	}
	return devices, c.discoveredAt
}

// Invalidate forces the next Devices call to rediscover.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.discovered = false
	c.mu.Unlock()
}

func (c *Cache) discover(ctx context.Context, predicate Predicate, now time.Time) error {
	all, err := c.lister.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDiscoveryFailed, c.name, err)
	}

	matched := make([]zwave.Device, 0, len(all))
	for _, d := range all {
		if predicate == nil || predicate(d) {
			matched = append(matched, d.Clone())
		}
	}

	c.mu.Lock()
	c.devices = matched
	c.discoveredAt = now
	c.discovered = true
	c.mu.Unlock()

	for _, d := range matched {
		c.logger.Info("discovered device",
			"cache", c.name,
			"device_id", d.ID,
			"name", d.DisplayName(),
			"manufacturer", d.Manufacturer,
			"model", d.Model,
		)
	}
	c.logger.Debug("discovery complete", "cache", c.name, "listed", len(all), "matched", len(matched))

	return nil
}
