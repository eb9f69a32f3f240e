package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize    = 100
	defaultFlushSeconds = 10

	// Runs last seconds; millisecond stamps keep points from colliding
	// without paying for nanosecond series.
	writePrecision = time.Millisecond
)

// Client writes run points to an InfluxDB v2 bucket.
//
// Writes go through the library's non-blocking WriteAPI, so RecordRun
// callers never wait on the network. Failed batches are reported through
// SetOnError.
type Client struct {
	client influxdb2.Client
	writes api.WriteAPI
	target string

	open      atomic.Bool
	closeOnce sync.Once

	onErrorMu sync.RWMutex
	onError   func(err error)
}

// writeOptions maps the influxdb config section onto client options.
// Non-positive batch settings fall back to the defaults.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushSeconds
	}

	//nolint:gosec // both positive
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flush) * uint(time.Second/time.Millisecond)).
		SetPrecision(writePrecision).
		SetHTTPRequestTimeout(uint(defaultConnectTimeout / time.Second))
}

// Connect pings the server and returns a client writing to cfg.Org and
// cfg.Bucket.
//
// Returns:
//   - *Client: Ready client; call Close to flush pending points
//   - error: ErrDisabled when cfg.Enabled is false, ErrConnectionFailed
//     when the server cannot be reached or reports itself unhealthy
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		client: client,
		writes: client.WriteAPI(cfg.Org, cfg.Bucket),
		target: cfg.Org + "/" + cfg.Bucket,
	}
	c.open.Store(true)
	go c.forwardErrors(c.writes.Errors())

	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

// forwardErrors drains the WriteAPI error channel until the client closes.
// The channel must be drained or the library's writer blocks.
func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.onErrorMu.RLock()
		onError := c.onError
		c.onErrorMu.RUnlock()

		if onError != nil {
			onError(fmt.Errorf("%w: %s: %w", ErrWriteFailed, c.target, err))
		}
	}
}

// Write queues one point. It never blocks on the network.
//
// Points are dropped while the client is closed, and so are points with
// an empty measurement or no fields, which InfluxDB would reject.
func (c *Client) Write(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() || measurement == "" || len(fields) == 0 {
		return
	}
	c.writes.WritePoint(influxdb2.NewPoint(measurement, tags, fields, at))
}

// Flush sends buffered points and waits for the batch to complete.
// It does nothing once the client is closed.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writes.Flush()
	}
}

// Close flushes pending points and releases the client. Later calls do
// nothing.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.writes.Flush()
		c.client.Close()
	})
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := ping(pingCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open. It does not touch the
// network; use HealthCheck for that.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// SetOnError registers the callback for failed batches. Errors wrap
// ErrWriteFailed.
func (c *Client) SetOnError(onError func(err error)) {
	c.onErrorMu.Lock()
	c.onError = onError
	c.onErrorMu.Unlock()
}
