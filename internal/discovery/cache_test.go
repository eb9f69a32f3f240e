package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

// mockLister counts ListDevices calls.
type mockLister struct {
	mu      sync.Mutex
	devices []zwave.Device
	err     error
	calls   int
}

func (m *mockLister) ListDevices(_ context.Context) ([]zwave.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]zwave.Device, len(m.devices))
	copy(out, m.devices)
	return out, nil
}

func (m *mockLister) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeClock is advanced manually by tests.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(lister Lister) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(lister, "test")
	c.now = clock.now
	return c, clock
}

func isHomeSeer(d zwave.Device) bool { return d.Manufacturer == "HomeSeer" }

func testDevices() []zwave.Device {
	return []zwave.Device{
		{ID: "a", Manufacturer: "HomeSeer"},
		{ID: "b", Manufacturer: "Other"},
		{ID: "c", Manufacturer: "HomeSeer"},
	}
}

// =============================================================================
// Freshness
// =============================================================================

func TestDevicesWithinValidityUsesCache(t *testing.T) {
	lister := &mockLister{devices: testDevices()}
	cache, clock := newTestCache(lister)
	ctx := context.Background()

	if _, err := cache.Devices(ctx, isHomeSeer, time.Minute); err != nil {
		t.Fatalf("first Devices: %v", err)
	}
	clock.advance(59 * time.Second)
	if _, err := cache.Devices(ctx, isHomeSeer, time.Minute); err != nil {
		t.Fatalf("second Devices: %v", err)
	}

	if got := lister.callCount(); got != 1 {
		t.Errorf("ListDevices calls = %d, want 1", got)
	}
}

func TestDevicesAfterValidityRediscovers(t *testing.T) {
	lister := &mockLister{devices: testDevices()}
	cache, clock := newTestCache(lister)
	ctx := context.Background()

	cache.Devices(ctx, isHomeSeer, time.Minute)
	clock.advance(time.Minute)
	cache.Devices(ctx, isHomeSeer, time.Minute)

	if got := lister.callCount(); got != 2 {
		t.Errorf("ListDevices calls = %d, want 2", got)
	}
}

func TestDevicesZeroValidityAlwaysRediscovers(t *testing.T) {
	lister := &mockLister{devices: testDevices()}
	cache, _ := newTestCache(lister)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cache.Devices(ctx, isHomeSeer, 0)
	}

	if got := lister.callCount(); got != 3 {
		t.Errorf("ListDevices calls = %d, want 3", got)
	}
}

// =============================================================================
// Filtering and isolation
// =============================================================================

func TestDevicesAppliesPredicateInOrder(t *testing.T) {
	lister := &mockLister{devices: testDevices()}
	cache, _ := newTestCache(lister)

	got, err := cache.Devices(context.Background(), isHomeSeer, time.Minute)
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Devices = %+v, want [a c]", got)
	}
}

func TestDevicesReturnsCopies(t *testing.T) {
	lister := &mockLister{devices: []zwave.Device{
		{ID: "a", Manufacturer: "HomeSeer", Identifiers: [][]string{{"zwave_js", "1-2"}}},
	}}
	cache, _ := newTestCache(lister)
	ctx := context.Background()

	first, _ := cache.Devices(ctx, isHomeSeer, time.Minute)
	first[0].Name = "mutated"
	first[0].Identifiers[0][1] = "mutated"

	second, _ := cache.Devices(ctx, isHomeSeer, time.Minute)
	if second[0].Name != "" || second[0].Identifiers[0][1] != "1-2" {
		t.Errorf("cache was mutated through returned slice: %+v", second[0])
	}
}

func TestDevicesErrorKeepsPreviousList(t *testing.T) {
	lister := &mockLister{devices: testDevices()}
	cache, clock := newTestCache(lister)
	ctx := context.Background()

	cache.Devices(ctx, isHomeSeer, time.Minute)

	lister.mu.Lock()
	lister.err = errors.New("connection reset")
	lister.mu.Unlock()
	clock.advance(2 * time.Minute)

	_, err := cache.Devices(ctx, isHomeSeer, time.Minute)
	if !errors.Is(err, ErrDiscoveryFailed) {
		t.Fatalf("error = %v, want ErrDiscoveryFailed", err)
	}

	snapshot, _ := cache.Snapshot()
	if len(snapshot) != 2 {
		t.Errorf("snapshot after failure has %d devices, want 2", len(snapshot))
	}
}

func TestInvalidate(t *testing.T) {
	lister := &mockLister{devices: testDevices()}
	cache, _ := newTestCache(lister)
	ctx := context.Background()

	cache.Devices(ctx, isHomeSeer, time.Hour)
	cache.Invalidate()
	cache.Devices(ctx, isHomeSeer, time.Hour)

	if got := lister.callCount(); got != 2 {
		t.Errorf("ListDevices calls = %d, want 2", got)
	}
}

func TestSnapshotBeforeDiscovery(t *testing.T) {
	cache, _ := newTestCache(&mockLister{})
	devices, at := cache.Snapshot()
	if len(devices) != 0 || !at.IsZero() {
		t.Errorf("Snapshot = (%v, %v), want empty and zero time", devices, at)
	}
}
