package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/discovery"
	"github.com/yavuzozge/homeseer-dimmers/internal/led"
	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

// fakeDimmer holds the on-device configuration of one simulated dimmer.
type fakeDimmer struct {
	node   int
	colors [led.Count]int
	blinks [led.Count]int
	mode   int
	freq   int
}

type writeCall struct {
	deviceID    string
	property    int
	propertyKey *int
	value       string
}

// fakeRegistry simulates Z-Wave JS configuration parameters for dimmers.
type fakeRegistry struct {
	mu       sync.Mutex
	dimmers  map[string]*fakeDimmer
	writes   []writeCall
	reads    int
	status   string
	writeErr error
	readErr  error
	// corrupt makes the named device report a string for its blink frequency.
	corrupt string
	// failReads and rejectWrites fail that many calls for a device ID
	// before it starts behaving.
	failReads    map[string]int
	rejectWrites map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{dimmers: make(map[string]*fakeDimmer), status: "accepted"}
}

func (f *fakeRegistry) add(id string, node int) *fakeDimmer {
	d := &fakeDimmer{node: node, mode: 1, freq: 5}
	f.dimmers[id] = d
	return d
}

func num(v int) json.RawMessage { return json.RawMessage(fmt.Sprint(v)) }

func (f *fakeRegistry) GetConfigurationParameters(_ context.Context, device zwave.Device) (map[string]zwave.Parameter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.failReads[device.ID] > 0 {
		f.failReads[device.ID]--
		return nil, errors.New("read timeout")
	}
	d, ok := f.dimmers[device.ID]
	if !ok {
		return nil, errors.New("unknown device")
	}

	params := make(map[string]zwave.Parameter)
	for i := 0; i < led.Count; i++ {
		addr, _ := zwave.ColorAddress(d.node, i)
		params[addr] = zwave.Parameter{Property: 21 + i, Kind: zwave.KindEnumerated, Raw: num(d.colors[i])}
		key := 1 << i
		addr, _ = zwave.BlinkAddress(d.node, i)
		params[addr] = zwave.Parameter{Property: 31, PropertyKey: &key, Kind: zwave.KindEnumerated, Raw: num(d.blinks[i])}
	}
	params[zwave.CustomModeAddress(d.node)] = zwave.Parameter{Property: 13, Kind: zwave.KindEnumerated, Raw: num(d.mode)}
	freq := zwave.Parameter{Property: 30, Kind: zwave.KindManualEntry, Raw: num(d.freq)}
	if f.corrupt == device.ID {
		freq.Raw = json.RawMessage(`"fast"`)
	}
	params[zwave.BlinkFrequencyAddress(d.node)] = freq
	return params, nil
}

func (f *fakeRegistry) SetConfigurationParameter(_ context.Context, device zwave.Device, property int, propertyKey *int, value string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, writeCall{deviceID: device.ID, property: property, propertyKey: propertyKey, value: value})
	if f.writeErr != nil {
		return "", f.writeErr
	}
	if f.rejectWrites[device.ID] > 0 {
		f.rejectWrites[device.ID]--
		return "rejected", nil
	}
	if !strings.EqualFold(f.status, "accepted") {
		return f.status, nil
	}

	d := f.dimmers[device.ID]
	var v int
	fmt.Sscan(value, &v)
	switch {
	case property >= 21 && property <= 27:
		d.colors[property-21] = v
	case property == 31:
		for i := 0; i < led.Count; i++ {
			if *propertyKey == 1<<i {
				d.blinks[i] = v
			}
		}
	case property == 13:
		d.mode = v
	case property == 30:
		d.freq = v
	}
	return f.status, nil
}

func (f *fakeRegistry) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeRegistry) resetWrites() {
	f.mu.Lock()
	f.writes = nil
	f.mu.Unlock()
}

// staticDevices is a DeviceSource returning a fixed list.
type staticDevices struct {
	devices []zwave.Device
	err     error
	calls   int
}

func (s *staticDevices) Devices(_ context.Context, predicate discovery.Predicate, _ time.Duration) ([]zwave.Device, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []zwave.Device
	for _, d := range s.devices {
		if predicate(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func dimmerDevice(id string, node int) zwave.Device {
	return zwave.Device{
		ID:           id,
		Name:         id,
		Manufacturer: "HomeSeer Technologies",
		Model:        "HS-WD200+",
		Identifiers:  [][]string{{"zwave_js", fmt.Sprintf("4023755774-%d", node)}},
	}
}

func newTestEngine(t *testing.T, reg *fakeRegistry, devices ...zwave.Device) (*Engine, *staticDevices) {
	t.Helper()
	source := &staticDevices{devices: devices}
	engine, err := New(Deps{Parameters: reg, Discovery: source}, Options{BlinkFrequency: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine, source
}

// =============================================================================
// Minimal writes
// =============================================================================

func TestReconcileIdempotent(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("d1", 37)
	engine, _ := newTestEngine(t, reg, dimmerDevice("d1", 37))

	table, _ := led.Table{}.With(0, led.Entry{Color: led.ColorRed, Blink: led.BlinkOn})
	table, _ = table.WithColor(4, led.ColorBlue)

	first, err := engine.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	if first.Writes != 3 || first.Result != Converged {
		t.Errorf("first report = %+v, want 3 writes, converged", first)
	}

	reg.resetWrites()
	second, err := engine.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if got := reg.writeCount(); got != 0 {
		t.Errorf("second pass issued %d writes, want 0", got)
	}
	if second.Writes != 0 || second.Attempts != 1 {
		t.Errorf("second report = %+v", second)
	}
}

func TestReconcileSingleBlinkDifference(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("d1", 12)
	engine, _ := newTestEngine(t, reg, dimmerDevice("d1", 12))

	table, _ := led.Table{}.WithBlink(3, led.BlinkOn)
	if _, err := engine.Reconcile(context.Background(), table); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if len(reg.writes) != 1 {
		t.Fatalf("writes = %+v, want exactly one", reg.writes)
	}
	w := reg.writes[0]
	if w.property != 31 || w.propertyKey == nil || *w.propertyKey != 8 || w.value != "1" {
		t.Errorf("write = property %d key %v value %q, want 31/8/\"1\"", w.property, w.propertyKey, w.value)
	}
}

func TestReconcileWriteOrder(t *testing.T) {
	reg := newFakeRegistry()
	d := reg.add("d1", 2)
	d.mode = 0
	d.freq = 0
	engine, _ := newTestEngine(t, reg, dimmerDevice("d1", 2))

	table, _ := led.Table{}.With(6, led.Entry{Color: led.ColorWhite, Blink: led.BlinkOn})
	table, _ = table.With(1, led.Entry{Color: led.ColorGreen, Blink: led.BlinkOn})

	if _, err := engine.Reconcile(context.Background(), table); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	var got []string
	for _, w := range reg.writes {
		s := fmt.Sprint(w.property)
		if w.propertyKey != nil {
			s += fmt.Sprintf("/%d", *w.propertyKey)
		}
		got = append(got, s)
	}
	want := []string{"22", "27", "31/2", "31/64", "13", "30"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("write order = %v, want %v", got, want)
	}
}

// =============================================================================
// Retry and failures
// =============================================================================

func TestReconcileRetryBound(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("d1", 37)
	reg.writeErr = errors.New("timeout")
	engine, source := newTestEngine(t, reg, dimmerDevice("d1", 37))

	table, _ := led.Table{}.WithColor(0, led.ColorRed)
	report, err := engine.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if report.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", report.Attempts)
	}
	if reg.reads != 2 {
		t.Errorf("configuration reads = %d, want 2", reg.reads)
	}
	if got := reg.writeCount(); got != 2 {
		t.Errorf("writes = %d, want 2", got)
	}
	if source.calls != 1 {
		t.Errorf("discovery calls = %d, want 1", source.calls)
	}
	if report.Result != ConvergedWithFailures || report.FailedWrites != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestReconcileRejectedStatusIsFailure(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("d1", 37)
	reg.status = "queued"
	engine, _ := newTestEngine(t, reg, dimmerDevice("d1", 37))

	table, _ := led.Table{}.WithColor(0, led.ColorRed)
	report, err := engine.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Attempts != 2 || report.Result != ConvergedWithFailures {
		t.Errorf("report = %+v, want 2 attempts with failures", report)
	}
}

func TestReconcileAcceptedIsCaseInsensitive(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("d1", 37)
	reg.status = "Accepted"
	engine, _ := newTestEngine(t, reg, dimmerDevice("d1", 37))

	table, _ := led.Table{}.WithColor(0, led.ColorRed)
	report, _ := engine.Reconcile(context.Background(), table)
	if report.Attempts != 1 || report.Result != Converged {
		t.Errorf("report = %+v, want converged in one attempt", report)
	}
}

func TestReconcileUnreadableDeviceIsSkipped(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("bad", 3)
	reg.add("good", 4)
	reg.corrupt = "bad"
	engine, _ := newTestEngine(t, reg, dimmerDevice("bad", 3), dimmerDevice("good", 4))

	table, _ := led.Table{}.WithColor(2, led.ColorMagenta)
	report, err := engine.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if report.FailedDevices != 1 || report.Result != ConvergedWithFailures {
		t.Errorf("report = %+v", report)
	}
	for _, w := range reg.writes {
		if w.deviceID == "bad" {
			t.Errorf("wrote to unreadable device: %+v", w)
		}
	}
	if reg.dimmers["good"].colors[2] != int(led.ColorMagenta) {
		t.Error("healthy device was not reconciled")
	}
	if report.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (read failures are not retried)", report.Attempts)
	}
}

func TestReconcileRetryRereadsFailedDevices(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("a", 3)
	reg.add("b", 4)
	reg.failReads = map[string]int{"a": 1}
	reg.rejectWrites = map[string]int{"b": 1}
	engine, _ := newTestEngine(t, reg, dimmerDevice("a", 3), dimmerDevice("b", 4))

	table, _ := led.Table{}.WithColor(0, led.ColorRed)
	report, err := engine.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if report.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", report.Attempts)
	}
	if reg.reads != 4 {
		t.Errorf("configuration reads = %d, want 4", reg.reads)
	}
	for id, d := range reg.dimmers {
		if d.colors[0] != int(led.ColorRed) {
			t.Errorf("device %s color[0] = %d, want %d", id, d.colors[0], led.ColorRed)
		}
	}
	if report.Result != Converged || report.FailedDevices != 0 || report.FailedWrites != 0 {
		t.Errorf("report = %+v, want converged on the second attempt", report)
	}
}

func TestReconcileDeviceWithoutNodeID(t *testing.T) {
	reg := newFakeRegistry()
	device := dimmerDevice("d1", 1)
	device.Identifiers = [][]string{{"zwave_js", "nodash"}}
	engine, _ := newTestEngine(t, reg, device)

	report, err := engine.Reconcile(context.Background(), led.Table{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.FailedDevices != 1 || reg.reads != 0 {
		t.Errorf("report = %+v, reads = %d", report, reg.reads)
	}
}

func TestReconcileDiscoveryError(t *testing.T) {
	reg := newFakeRegistry()
	engine, source := newTestEngine(t, reg)
	source.err = errors.New("registry down")

	if _, err := engine.Reconcile(context.Background(), led.Table{}); err == nil {
		t.Fatal("expected discovery error")
	}
}

func TestReconcileCancelled(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("d1", 1)
	engine, _ := newTestEngine(t, reg, dimmerDevice("d1", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Reconcile(ctx, led.Table{}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestReconcileIgnoresUnsupportedDevices(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("d1", 1)
	other := zwave.Device{ID: "lamp", Manufacturer: "Zooz", Model: "ZEN77"}
	engine, _ := newTestEngine(t, reg, other, dimmerDevice("d1", 1))

	report, err := engine.Reconcile(context.Background(), led.Table{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Devices != 1 {
		t.Errorf("Devices = %d, want 1", report.Devices)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Deps{Discovery: &staticDevices{}}, Options{}); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("error = %v, want ErrMissingDependency", err)
	}
	if _, err := New(Deps{Parameters: newFakeRegistry()}, Options{}); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("error = %v, want ErrMissingDependency", err)
	}
}

func TestIsSupportedDimmer(t *testing.T) {
	tests := []struct {
		manufacturer string
		model        string
		want         bool
	}{
		{"HomeSeer Technologies", "HS-WD200+", true},
		{"homeseer technologies", "HS-WX300", true},
		{"HomeSeer Technologies", "HS-WS200+", false},
		{"Leviton", "HS-WD200+", false},
	}
	for _, tt := range tests {
		got := IsSupportedDimmer(zwave.Device{Manufacturer: tt.manufacturer, Model: tt.model})
		if got != tt.want {
			t.Errorf("IsSupportedDimmer(%q, %q) = %v, want %v", tt.manufacturer, tt.model, got, tt.want)
		}
	}
}
