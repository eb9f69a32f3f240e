package ledinput

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/led"
)

const (
	testColorPattern = "sensor.dimmer_led_{0}_color"
	testBlinkPattern = "binary_sensor.dimmer_led_{0}_blink"
)

// mockSource is an in-memory StateSource.
type mockSource struct {
	mu          sync.Mutex
	values      map[string]string
	handler     func(StateChange)
	subscribed  []string
	reads       int
	subscribeFn func() error
}

func newMockSource() *mockSource {
	return &mockSource{values: make(map[string]string)}
}

func (m *mockSource) CurrentValue(entityID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	v, ok := m.values[entityID]
	return v, ok
}

func (m *mockSource) SubscribeChanges(entityIDs []string, handler func(StateChange)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeFn != nil {
		if err := m.subscribeFn(); err != nil {
			return nil, err
		}
	}
	m.subscribed = entityIDs
	m.handler = handler
	return func() {
		m.mu.Lock()
		m.handler = nil
		m.mu.Unlock()
	}, nil
}

func (m *mockSource) emit(entityID, state string) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(StateChange{EntityID: entityID, State: state})
	}
}

// recordingLogger collects warnings.
type recordingLogger struct {
	noopLogger
	mu    sync.Mutex
	warns []string
}

func (r *recordingLogger) Warn(msg string, _ ...any) {
	r.mu.Lock()
	r.warns = append(r.warns, msg)
	r.mu.Unlock()
}

func startAggregator(t *testing.T, source *mockSource, logger Logger) *Aggregator {
	t.Helper()
	agg, err := New(source, Options{
		ColorPattern: testColorPattern,
		BlinkPattern: testBlinkPattern,
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(agg.Stop)
	return agg
}

func receive(t *testing.T, ch <-chan led.Table) led.Table {
	t.Helper()
	select {
	case table, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return table
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for table")
	}
	return led.Table{}
}

func expectNothing(t *testing.T, ch <-chan led.Table) {
	t.Helper()
	select {
	case table := <-ch:
		t.Fatalf("unexpected table %s", table)
	case <-time.After(50 * time.Millisecond):
	}
}

// =============================================================================
// Construction
// =============================================================================

func TestNewRejectsInvalidPatterns(t *testing.T) {
	tests := []struct {
		name    string
		color   string
		blink   string
		wantErr error
	}{
		{"blank colour", "", testBlinkPattern, ErrBlankPattern},
		{"whitespace blink", testColorPattern, "   ", ErrBlankPattern},
		{"identical", testColorPattern, testColorPattern, ErrAmbiguousPatterns},
		{"no placeholder", "sensor.led_color", testBlinkPattern, ErrMissingPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newMockSource()
			_, err := New(source, Options{ColorPattern: tt.color, BlinkPattern: tt.blink})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("error = %v, want ErrConfiguration", err)
			}
			if source.reads != 0 || source.subscribed != nil {
				t.Errorf("source touched before validation: reads=%d subscribed=%v", source.reads, source.subscribed)
			}
		})
	}
}

func TestNewFoldsCurrentValues(t *testing.T) {
	source := newMockSource()
	source.values["sensor.dimmer_led_1_color"] = "Red"
	source.values["binary_sensor.dimmer_led_1_blink"] = "on"
	source.values["sensor.dimmer_led_7_color"] = "cyan"

	agg, err := New(source, Options{ColorPattern: testColorPattern, BlinkPattern: testBlinkPattern})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	table := agg.Current()
	if got := table.At(0); got != (led.Entry{Color: led.ColorRed, Blink: led.BlinkOn}) {
		t.Errorf("At(0) = %+v", got)
	}
	if got := table.At(6).Color; got != led.ColorCyan {
		t.Errorf("At(6).Color = %v, want Cyan", got)
	}
	if got := table.At(3); got != (led.Entry{}) {
		t.Errorf("At(3) = %+v, want Off/Off", got)
	}
}

func TestChannelNames(t *testing.T) {
	agg, err := New(newMockSource(), Options{ColorPattern: testColorPattern, BlinkPattern: testBlinkPattern})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	names := agg.ChannelNames()
	if len(names) != 14 {
		t.Fatalf("len(names) = %d, want 14", len(names))
	}
	if names[0] != "sensor.dimmer_led_1_color" || names[13] != "binary_sensor.dimmer_led_7_blink" {
		t.Errorf("names = %v", names)
	}
}

// =============================================================================
// Emissions
// =============================================================================

func TestInitialEmissionIsAllOff(t *testing.T) {
	agg := startAggregator(t, newMockSource(), nil)

	ch, cancel := agg.Subscribe(4)
	defer cancel()

	if got := receive(t, ch); got != (led.Table{}) {
		t.Errorf("initial table = %s, want all Off", got)
	}
	expectNothing(t, ch)
}

func TestUpdatesArePublished(t *testing.T) {
	source := newMockSource()
	agg := startAggregator(t, source, nil)

	ch, cancel := agg.Subscribe(8)
	defer cancel()

	source.emit("sensor.dimmer_led_3_color", "Green")
	source.emit("binary_sensor.dimmer_led_3_blink", "ON")

	tables := []led.Table{receive(t, ch), receive(t, ch), receive(t, ch)}

	if tables[1].At(2) != (led.Entry{Color: led.ColorGreen}) {
		t.Errorf("second table LED 3 = %+v", tables[1].At(2))
	}
	if tables[2].At(2) != (led.Entry{Color: led.ColorGreen, Blink: led.BlinkOn}) {
		t.Errorf("third table LED 3 = %+v", tables[2].At(2))
	}
	if agg.Current() != tables[2] {
		t.Errorf("Current = %s, want %s", agg.Current(), tables[2])
	}
}

func TestLateSubscriberGetsLatest(t *testing.T) {
	source := newMockSource()
	agg := startAggregator(t, source, nil)

	early, cancel := agg.Subscribe(8)
	defer cancel()
	receive(t, early)

	source.emit("sensor.dimmer_led_5_color", "yellow")
	receive(t, early)

	late, cancelLate := agg.Subscribe(1)
	defer cancelLate()

	if got := receive(t, late).At(4).Color; got != led.ColorYellow {
		t.Errorf("late subscriber LED 5 colour = %v, want Yellow", got)
	}
}

func TestColorFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		wantWarn bool
	}{
		{"unavailable", "unavailable", false},
		{"unavailable mixed case", "Unavailable", false},
		{"garbage", "chartreuse", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newMockSource()
			logger := &recordingLogger{}
			agg := startAggregator(t, source, logger)

			ch, cancel := agg.Subscribe(8)
			defer cancel()
			receive(t, ch)

			source.emit("sensor.dimmer_led_2_color", "Blue")
			receive(t, ch)
			source.emit("sensor.dimmer_led_2_color", tt.value)

			if got := receive(t, ch).At(1).Color; got != led.ColorOff {
				t.Errorf("colour = %v, want Off", got)
			}
			logger.mu.Lock()
			warned := len(logger.warns) > 0
			logger.mu.Unlock()
			if warned != tt.wantWarn {
				t.Errorf("warned = %v, want %v", warned, tt.wantWarn)
			}
		})
	}
}

func TestDecodeBlink(t *testing.T) {
	tests := map[string]led.Blink{
		"on":          led.BlinkOn,
		"On":          led.BlinkOn,
		"ON":          led.BlinkOn,
		"off":         led.BlinkOff,
		"unavailable": led.BlinkOff,
		"true":        led.BlinkOff,
		"":            led.BlinkOff,
	}
	for raw, want := range tests {
		if got := DecodeBlink(raw); got != want {
			t.Errorf("DecodeBlink(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestUnknownChannelIgnored(t *testing.T) {
	source := newMockSource()
	agg := startAggregator(t, source, nil)

	ch, cancel := agg.Subscribe(4)
	defer cancel()
	receive(t, ch)

	source.emit("sensor.something_else", "Red")
	expectNothing(t, ch)
}

func TestSlowSubscriberKeepsNewest(t *testing.T) {
	source := newMockSource()
	agg := startAggregator(t, source, nil)

	ch, cancel := agg.Subscribe(1)
	defer cancel()

	source.emit("sensor.dimmer_led_1_color", "Red")
	source.emit("sensor.dimmer_led_1_color", "White")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case table := <-ch:
			if table.At(0).Color == led.ColorWhite {
				return
			}
		case <-deadline:
			t.Fatal("newest table never delivered")
		}
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestStartSubscribeError(t *testing.T) {
	source := newMockSource()
	source.subscribeFn = func() error { return errors.New("not connected") }

	agg, err := New(source, Options{ColorPattern: testColorPattern, BlinkPattern: testBlinkPattern})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := agg.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded with failing source")
	}
	agg.Stop()
}

func TestStartCatchesUpWithChangesBeforeSubscribe(t *testing.T) {
	source := newMockSource()
	source.values["sensor.dimmer_led_2_color"] = "Green"

	agg, err := New(source, Options{ColorPattern: testColorPattern, BlinkPattern: testBlinkPattern})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Changes between New and Start reach no subscriber.
	source.mu.Lock()
	source.values["sensor.dimmer_led_1_color"] = "Red"
	source.values["binary_sensor.dimmer_led_1_blink"] = "on"
	source.mu.Unlock()

	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(agg.Stop)

	want := led.Entry{Color: led.ColorRed, Blink: led.BlinkOn}
	deadline := time.Now().Add(2 * time.Second)
	for agg.Current().At(0) != want {
		if time.Now().After(deadline) {
			t.Fatalf("LED 1 = %+v, want %+v", agg.Current().At(0), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := agg.Current().At(1).Color; got != led.ColorGreen {
		t.Errorf("LED 2 colour = %v, want Green", got)
	}

	// A change delivered after the catch-up still wins.
	source.emit("sensor.dimmer_led_1_color", "Blue")
	deadline = time.Now().Add(2 * time.Second)
	for agg.Current().At(0).Color != led.ColorBlue {
		if time.Now().After(deadline) {
			t.Fatalf("LED 1 colour = %v, want Blue", agg.Current().At(0).Color)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopClosesSubscribers(t *testing.T) {
	source := newMockSource()
	agg, _ := New(source, Options{ColorPattern: testColorPattern, BlinkPattern: testBlinkPattern})
	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ch, _ := agg.Subscribe(1)
	<-ch

	agg.Stop()
	agg.Stop()

	if _, ok := <-ch; ok {
		t.Error("channel still open after Stop")
	}
	if err := agg.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start error = %v, want ErrAlreadyStarted", err)
	}
}
