package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/history"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/mqtt"
	"github.com/yavuzozge/homeseer-dimmers/internal/led"
	"github.com/yavuzozge/homeseer-dimmers/internal/ledsync"
)

// tableBuffer is the subscription buffer for LED tables; only the newest
// table matters on a retained topic.
const tableBuffer = 1

// Sentinel errors.
var (
	ErrMissingDependency = errors.New("mqttbridge: missing dependency")
	ErrUnknownCommand    = errors.New("mqttbridge: unknown command")
	ErrInvalidPayload    = errors.New("mqttbridge: invalid payload")
)

// Logger defines the logging interface used by the Bridge.
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

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishJSON(topic string, v any, retained bool) error
}

// Commands is the service surface reachable over MQTT.
type Commands interface {
	SyncDimmersFrom(trigger ledsync.Trigger, table led.Table)
	ResyncFrom(trigger ledsync.Trigger)
	PingFrom(trigger ledsync.Trigger)
}

// TableSource streams aggregated LED tables.
type TableSource interface {
	Subscribe(buffer int) (<-chan led.Table, func())
}

// Deps holds the bridge's collaborators.
type Deps struct {
	MQTT     MQTTClient
	Commands Commands
	Input    TableSource // optional; without it nothing is published on dimmersync/leds
	Logger   Logger
	QoS      byte
}

// SyncCommand is the optional body of a sync command.
type SyncCommand struct {
	LEDs *led.Table `json:"leds,omitempty"`
}

// LEDsMessage is published retained on dimmersync/leds.
type LEDsMessage struct {
	Timestamp time.Time `json:"timestamp"`
	LEDs      led.Table `json:"leds"`
}

// Bridge translates between MQTT topics and the service.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt     MQTTClient
	commands Commands
	input    TableSource
	qos      byte
	logger   Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	started  bool
	mu       sync.Mutex
}

// New creates a bridge. Call Start to subscribe.
func New(deps Deps) (*Bridge, error) {
	if deps.MQTT == nil {
		return nil, fmt.Errorf("%w: mqtt client", ErrMissingDependency)
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("%w: commands", ErrMissingDependency)
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		mqtt:     deps.MQTT,
		commands: deps.Commands,
		input:    deps.Input,
		qos:      deps.QoS,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start subscribes to command topics and begins publishing LED tables.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	topic := mqtt.Topics{}.AllCommands()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", topic)

	if b.input != nil {
		tables, cancel := b.input.Subscribe(tableBuffer)
		b.wg.Add(1)
		go b.publishTables(ctx, tables, cancel)
	}

	b.started = true
	return nil
}

// Stop ends table publishing. Subscriptions end with the MQTT client.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		b.logger.Info("mqtt bridge stopped")
	})
}

func (b *Bridge) publishTables(ctx context.Context, tables <-chan led.Table, cancel func()) {
	defer b.wg.Done()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case table, ok := <-tables:
			if !ok {
				return
			}
			msg := LEDsMessage{Timestamp: time.Now().UTC(), LEDs: table}
			if err := b.mqtt.PublishJSON(mqtt.Topics{}.LEDs(), msg, true); err != nil {
				b.logger.Warn("failed to publish LED table", "error", err)
			}
		}
	}
}

// handleMessage routes a command topic to the service.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	name, ok := mqtt.Topics{}.CommandName(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrUnknownCommand, topic)
	}

	b.logger.Info("received command", "command", name)

	switch name {
	case mqtt.CommandSync:
		return b.handleSync(payload)
	case mqtt.CommandPing:
		b.commands.PingFrom(ledsync.TriggerMQTT)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

func (b *Bridge) handleSync(payload []byte) error {
	if len(payload) == 0 {
		b.commands.ResyncFrom(ledsync.TriggerMQTT)
		return nil
	}

	var cmd SyncCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if cmd.LEDs == nil {
		b.commands.ResyncFrom(ledsync.TriggerMQTT)
		return nil
	}
	b.commands.SyncDimmersFrom(ledsync.TriggerMQTT, *cmd.LEDs)
	return nil
}

// RecordRun publishes a finished run on dimmersync/runs/{kind}.
func (b *Bridge) RecordRun(_ context.Context, run history.Run) error {
	if err := b.mqtt.PublishJSON(mqtt.Topics{}.Runs(run.Kind), run, false); err != nil {
		return fmt.Errorf("publishing run %s: %w", run.ID, err)
	}
	return nil
}
