package ping

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/discovery"
	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

type refreshCall struct {
	deviceID string
	cc       zwave.CommandClassID
	all      bool
}

type mockRefresher struct {
	mu    sync.Mutex
	calls []refreshCall
	fail  map[string]bool
}

func (m *mockRefresher) RefreshValues(_ context.Context, device zwave.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, refreshCall{deviceID: device.ID, all: true})
	if m.fail[device.ID] {
		return errors.New("node dead")
	}
	return nil
}

func (m *mockRefresher) RefreshCommandClassValues(_ context.Context, device zwave.Device, cc zwave.CommandClassID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, refreshCall{deviceID: device.ID, cc: cc})
	if m.fail[device.ID] {
		return errors.New("node dead")
	}
	return nil
}

type staticDevices struct {
	devices []zwave.Device
	calls   int
}

func (s *staticDevices) Devices(_ context.Context, predicate discovery.Predicate, _ time.Duration) ([]zwave.Device, error) {
	s.calls++
	var out []zwave.Device
	for _, d := range s.devices {
		if predicate(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func TestPingRefreshesConfiguredDevices(t *testing.T) {
	refresher := &mockRefresher{}
	source := &staticDevices{devices: []zwave.Device{
		{ID: "1", Name: "Garage Door Lock"},
		{ID: "2", Name: "Kitchen Dimmer"},
		{ID: "3", Name: "garage door lock"},
		{ID: "4", Name: "Porch Light"},
	}}

	engine, err := New(Deps{Refresher: refresher, Discovery: source}, []Target{
		{Name: "Garage Door Lock", CommandClass: zwave.CommandClassDoorLock},
		{Name: "Porch Light", CommandClass: zwave.CommandClassNoOperation},
	}, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := engine.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}

	want := []refreshCall{
		{deviceID: "1", cc: zwave.CommandClassDoorLock},
		{deviceID: "4", all: true},
	}
	if len(refresher.calls) != len(want) {
		t.Fatalf("calls = %+v, want %+v", refresher.calls, want)
	}
	for i := range want {
		if refresher.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, refresher.calls[i], want[i])
		}
	}
	if report.Devices != 2 || report.Failures != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestPingDuplicateTargetKeepsFirst(t *testing.T) {
	refresher := &mockRefresher{}
	source := &staticDevices{devices: []zwave.Device{{ID: "1", Name: "Garage Door Lock"}}}

	engine, err := New(Deps{Refresher: refresher, Discovery: source}, []Target{
		{Name: "Garage Door Lock", CommandClass: zwave.CommandClassDoorLock},
		{Name: "Garage Door Lock", CommandClass: zwave.CommandClassNoOperation},
	}, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := engine.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	want := refreshCall{deviceID: "1", cc: zwave.CommandClassDoorLock}
	if len(refresher.calls) != 1 || refresher.calls[0] != want {
		t.Errorf("calls = %+v, want [%+v]", refresher.calls, want)
	}
}

func TestPingContinuesAfterFailure(t *testing.T) {
	refresher := &mockRefresher{fail: map[string]bool{"1": true}}
	source := &staticDevices{devices: []zwave.Device{
		{ID: "1", Name: "A"},
		{ID: "2", Name: "B"},
	}}
	engine, _ := New(Deps{Refresher: refresher, Discovery: source}, []Target{
		{Name: "A", CommandClass: zwave.CommandClassBasic},
		{Name: "B", CommandClass: zwave.CommandClassBasic},
	}, 0)

	report, err := engine.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if len(refresher.calls) != 2 || report.Failures != 1 {
		t.Errorf("calls = %d, report = %+v", len(refresher.calls), report)
	}
}

func TestPingWithoutTargetsSkipsDiscovery(t *testing.T) {
	source := &staticDevices{}
	engine, _ := New(Deps{Refresher: &mockRefresher{}, Discovery: source}, nil, time.Hour)

	if _, err := engine.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if source.calls != 0 {
		t.Errorf("discovery calls = %d, want 0", source.calls)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Deps{Discovery: &staticDevices{}}, nil, 0); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("error = %v, want ErrMissingDependency", err)
	}
}
