package ledinput

import (
	"context"
	"fmt"
	"sync"

	"github.com/yavuzozge/homeseer-dimmers/internal/led"
)

// changeBufferSize bounds the number of undelivered channel changes.
const changeBufferSize = 64

// Logger defines the logging interface used by the Aggregator.
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

// StateChange is a new raw value on a named channel.
type StateChange struct {
	EntityID string
	State    string
}

// StateSource provides current values and change notifications for channels.
type StateSource interface {
	// CurrentValue returns the last known value of a channel, if any.
	CurrentValue(entityID string) (string, bool)

	// SubscribeChanges calls handler for each change on the listed channels
	// until the returned function is called.
	SubscribeChanges(entityIDs []string, handler func(StateChange)) (unsubscribe func(), err error)
}

// Options configures an Aggregator.
type Options struct {
	// ColorPattern names the colour channels, e.g. "sensor.dimmer_led_{0}_color".
	ColorPattern string

	// BlinkPattern names the blink channels, e.g. "binary_sensor.dimmer_led_{0}_blink".
	BlinkPattern string

	// Logger receives decode warnings. Optional.
	Logger Logger
}

// update is a decoded change for one table cell.
type update struct {
	channel channel
	raw     string
}

// Aggregator folds channel changes into a led.Table.
//
// Thread Safety:
//   - The table is only written by the goroutine started in Start.
//   - Current and Subscribe are safe for concurrent use.
type Aggregator struct {
	source   StateSource
	logger   Logger
	channels map[string]channel
	names    []string
	// initial holds the raw values folded by New.
	initial map[string]string

	updates chan update

	mu          sync.Mutex
	current     led.Table
	subscribers map[int]chan led.Table
	nextID      int
	closed      bool

	started     bool
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
	stopOnce    sync.Once
}

// New validates the channel patterns and folds the channels' current values
// into the initial table.
//
// No channel is subscribed to until Start is called, and nothing is read
// from source when the patterns are invalid.
//
// Returns:
//   - *Aggregator: Aggregator holding the initial table
//   - error: Wrapped ErrConfiguration for blank, identical or placeholder-less patterns
func New(source StateSource, opts Options) (*Aggregator, error) {
	if err := validatePatterns(opts.ColorPattern, opts.BlinkPattern); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: state source is required", ErrConfiguration)
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	channels, names := buildChannels(opts.ColorPattern, opts.BlinkPattern)

	a := &Aggregator{
		source:      source,
		logger:      logger,
		channels:    channels,
		names:       names,
		updates:     make(chan update, changeBufferSize),
		initial:     make(map[string]string),
		subscribers: make(map[int]chan led.Table),
		done:        make(chan struct{}),
	}

	for _, name := range names {
		raw, ok := source.CurrentValue(name)
		if !ok {
			continue
		}
		a.initial[name] = raw
		a.current = a.apply(a.current, update{channel: channels[name], raw: raw})
	}

	return a, nil
}

// ChannelNames returns the fourteen channel names, colour then blink per LED.
func (a *Aggregator) ChannelNames() []string {
	return append([]string(nil), a.names...)
}

// Start subscribes to the channels and starts the fold goroutine.
//
// Values that changed between New and the subscription are picked up by
// rereading every channel once the subscription is in place. The goroutine
// stops when ctx is cancelled or Stop is called.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)

	unsubscribe, err := a.source.SubscribeChanges(a.ChannelNames(), func(change StateChange) {
		a.enqueue(runCtx, change)
	})
	if err != nil {
		cancel()
		close(a.done)
		return fmt.Errorf("subscribing to LED channels: %w", err)
	}

	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.cancel = cancel
	a.mu.Unlock()

	go a.run(runCtx)
	return nil
}

// Stop unsubscribes from the channels, stops the fold goroutine and closes
// every subscriber channel. It is safe to call more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		unsubscribe, cancel, started := a.unsubscribe, a.cancel, a.started
		a.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		if cancel != nil {
			cancel()
		}
		if started {
			<-a.done
		}

		a.mu.Lock()
		a.closed = true
		for id, ch := range a.subscribers {
			close(ch)
			delete(a.subscribers, id)
		}
		a.mu.Unlock()
	})
}

// Current returns the current table.
func (a *Aggregator) Current() led.Table {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Subscribe registers an observer. The returned channel immediately holds
// the current table and then receives every new table.
//
// buffer is the number of undelivered tables kept for a slow reader; when
// it is full the oldest is dropped so the newest table always arrives.
// The channel is closed by cancel or by Stop.
func (a *Aggregator) Subscribe(buffer int) (<-chan led.Table, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan led.Table, buffer)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		close(ch)
		return ch, func() {}
	}

	id := a.nextID
	a.nextID++
	a.subscribers[id] = ch
	ch <- a.current

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if sub, ok := a.subscribers[id]; ok {
				close(sub)
				delete(a.subscribers, id)
			}
		})
	}
	return ch, cancel
}

// enqueue resolves the channel and hands the change to the fold goroutine.
func (a *Aggregator) enqueue(ctx context.Context, change StateChange) {
	ch, ok := a.channels[change.EntityID]
	if !ok {
		a.logger.Debug("ignoring change on unknown channel", "entity_id", change.EntityID)
		return
	}
	select {
	case a.updates <- update{channel: ch, raw: change.State}:
	case <-ctx.Done():
	}
}

// run is the single writer of the current table.
func (a *Aggregator) run(ctx context.Context) {
	defer close(a.done)

	a.catchUp()

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-a.updates:
			a.mu.Lock()
			a.current = a.apply(a.current, u)
			a.publishLocked(a.current)
			a.mu.Unlock()
		}
	}
}

// catchUp folds channels whose value moved since New. Changes queued by the
// subscription meanwhile are applied after it, so the newest value wins.
func (a *Aggregator) catchUp() {
	var missed []update
	for _, name := range a.names {
		raw, ok := a.source.CurrentValue(name)
		if !ok {
			continue
		}
		if prev, seen := a.initial[name]; seen && prev == raw {
			continue
		}
		missed = append(missed, update{channel: a.channels[name], raw: raw})
	}
	if len(missed) == 0 {
		return
	}

	a.logger.Info("LED channels changed during startup", "channels", len(missed))

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range missed {
		a.current = a.apply(a.current, u)
	}
	a.publishLocked(a.current)
}

// apply returns table with the cell addressed by u replaced.
func (a *Aggregator) apply(table led.Table, u update) led.Table {
	var (
		next led.Table
		err  error
	)
	switch u.channel.aspect {
	case AspectColor:
		next, err = table.WithColor(u.channel.index, DecodeColor(u.raw, a.logger))
	default:
		next, err = table.WithBlink(u.channel.index, DecodeBlink(u.raw))
	}
	if err != nil {
		a.logger.Error("dropping LED update", "index", u.channel.index, "error", err)
		return table
	}
	return next
}

// publishLocked delivers table to every subscriber, dropping the oldest
// pending table of a full subscriber. Caller must hold a.mu.
func (a *Aggregator) publishLocked(table led.Table) {
	for _, ch := range a.subscribers {
		select {
		case ch <- table:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- table:
		default:
		}
	}
}
