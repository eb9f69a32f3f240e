package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/auth"
	"github.com/yavuzozge/homeseer-dimmers/internal/history"
	"github.com/yavuzozge/homeseer-dimmers/internal/homeassistant"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/config"
	"github.com/yavuzozge/homeseer-dimmers/internal/ledinput"
	"github.com/yavuzozge/homeseer-dimmers/internal/ping"
	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// writeConfig writes a minimal valid configuration. The database lives in
// a temp dir and Home Assistant points at a closed port.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
dimmers:
  color_pattern: "sensor.dimmer_led_{0}_color"
  blink_pattern: "binary_sensor.dimmer_led_{0}_blink"

home_assistant:
  url: "ws://127.0.0.1:1/api/websocket"
  token: "test-token"
  connect_timeout: 1

database:
  path: "` + filepath.Join(tmpDir, "data", "test.db") + `"

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18090

security:
  jwt:
    secret: "` + testJWTSecret + `"
    issuer: "dimmersync-test"
` + extra

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// ─── run ───────────────────────────────────────────────────────────

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, []string{"-config", "/nonexistent/path/config.yaml"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config", err)
	}
}

// TestRun_InvalidConfigValues verifies validation errors stop startup.
func TestRun_InvalidConfigValues(t *testing.T) {
	configPath := writeConfig(t, "\nmqtt:\n  qos: 7\n")

	err := run(context.Background(), []string{"-config", configPath}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "mqtt.qos") {
		t.Fatalf("run() error = %v, want mqtt.qos validation failure", err)
	}
}

// TestRun_HomeAssistantUnreachable verifies startup fails after the
// database is migrated when Home Assistant cannot be reached.
func TestRun_HomeAssistantUnreachable(t *testing.T) {
	configPath := writeConfig(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx, []string{"-config", configPath}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "connecting to Home Assistant") {
		t.Fatalf("run() error = %v, want Home Assistant connection failure", err)
	}

	dbPath := filepath.Join(filepath.Dir(configPath), "data", "test.db")
	if _, statErr := os.Stat(dbPath); statErr != nil {
		t.Errorf("database not created before connecting: %v", statErr)
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-version"}, &out); err != nil {
		t.Fatalf("run(-version) error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "dimmersync dev") {
		t.Errorf("output = %q, want dimmersync dev...", out.String())
	}
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-h"}, &out); err != nil {
		t.Fatalf("run(-h) error: %v", err)
	}
	if !strings.Contains(out.String(), "-mint-token") {
		t.Errorf("usage missing -mint-token: %q", out.String())
	}
}

func TestRun_MintToken(t *testing.T) {
	configPath := writeConfig(t, "")

	var out bytes.Buffer
	args := []string{"-config", configPath, "-mint-token", "wall-panel", "-role", "operator", "-ttl", "1h"}
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("run(-mint-token) error: %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), testJWTSecret, "dimmersync-test")
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "wall-panel" || claims.Role != auth.RoleOperator {
		t.Errorf("claims = %s/%s, want wall-panel/operator", claims.Subject, claims.Role)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > time.Hour || ttl < 55*time.Minute {
		t.Errorf("token lifetime = %v, want about 1h", ttl)
	}
}

func TestRun_MintTokenInvalidRole(t *testing.T) {
	configPath := writeConfig(t, "")

	err := run(context.Background(), []string{"-config", configPath, "-mint-token", "x", "-role", "admin"}, &bytes.Buffer{})
	if !errors.Is(err, auth.ErrInvalidRole) {
		t.Errorf("run() error = %v, want ErrInvalidRole", err)
	}
}

// ─── flags & config path ───────────────────────────────────────────

func TestParseFlags(t *testing.T) {
	t.Setenv("DIMMERSYNC_CONFIG", "")

	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{
			name: "defaults",
			args: nil,
			want: options{configPath: defaultConfigPath, role: "viewer", ttl: auth.DefaultTokenTTL},
		},
		{
			name: "mint token",
			args: []string{"-config", "/etc/dimmersync.yaml", "-mint-token", "me", "-role", "operator", "-ttl", "2h"},
			want: options{configPath: "/etc/dimmersync.yaml", mintToken: "me", role: "operator", ttl: 2 * time.Hour},
		},
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: true},
		{name: "positional argument", args: []string{"extra"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("DIMMERSYNC_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("DIMMERSYNC_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// ─── wiring helpers ────────────────────────────────────────────────

func TestHomeAssistantConfig(t *testing.T) {
	got := homeAssistantConfig(config.HomeAssistantConfig{
		URL:            "ws://ha:8123/api/websocket",
		Token:          "tok",
		ConnectTimeout: 10,
		RequestTimeout: 30,
		Reconnect:      config.HomeAssistantReconnectConfig{InitialDelay: 5, MaxDelay: 120},
		TriggerEvent:   "homeseer_dimmers_synchronize",
	})

	if got.ConnectTimeout != 10*time.Second || got.RequestTimeout != 30*time.Second {
		t.Errorf("timeouts = %v/%v", got.ConnectTimeout, got.RequestTimeout)
	}
	if got.ReconnectInterval != 5*time.Second || got.MaxReconnectInterval != 2*time.Minute {
		t.Errorf("reconnect = %v/%v", got.ReconnectInterval, got.MaxReconnectInterval)
	}
	if len(got.Events) != 1 || got.Events[0] != "homeseer_dimmers_synchronize" {
		t.Errorf("events = %v", got.Events)
	}

	if none := homeAssistantConfig(config.HomeAssistantConfig{URL: "ws://ha"}); none.Events != nil {
		t.Errorf("events without trigger = %v, want nil", none.Events)
	}
}

func TestPingTargets(t *testing.T) {
	targets, err := pingTargets([]config.PingDeviceConfig{
		{Name: "Porch dimmer"},
		{Name: "Hall switch", CommandClass: "Basic"},
		{Name: "Kitchen", CommandClass: "38"},
	})
	if err != nil {
		t.Fatalf("pingTargets() error: %v", err)
	}

	want := []ping.Target{
		{Name: "Porch dimmer", CommandClass: zwave.CommandClassNoOperation},
		{Name: "Hall switch", CommandClass: zwave.CommandClassBasic},
		{Name: "Kitchen", CommandClass: zwave.CommandClassSwitchMultilevel},
	}
	if len(targets) != len(want) {
		t.Fatalf("targets = %d, want %d", len(targets), len(want))
	}
	for i := range want {
		if targets[i] != want[i] {
			t.Errorf("targets[%d] = %+v, want %+v", i, targets[i], want[i])
		}
	}

	if _, err := pingTargets([]config.PingDeviceConfig{{Name: "x", CommandClass: "Teleport"}}); err == nil {
		t.Error("unknown command class should fail")
	}
}

type recorderFunc func(history.Run) error

func (f recorderFunc) RecordRun(_ context.Context, run history.Run) error { return f(run) }

func TestRunSinks(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	record := func(name string, err error) history.Recorder {
		return recorderFunc(func(run history.Run) error {
			mu.Lock()
			seen = append(seen, name+":"+run.ID)
			mu.Unlock()
			return err
		})
	}

	sinks := &runSinks{}
	if err := sinks.RecordRun(context.Background(), history.Run{ID: "r0"}); err != nil {
		t.Errorf("empty sinks error = %v", err)
	}

	failure := errors.New("disk full")
	sinks.add(record("sqlite", failure))
	sinks.add(record("metrics", nil))

	err := sinks.RecordRun(context.Background(), history.Run{ID: "r1"})
	if !errors.Is(err, failure) {
		t.Errorf("RecordRun error = %v, want disk full", err)
	}

	sinks.add(record("api", nil))
	if err := sinks.RecordRun(context.Background(), history.Run{ID: "r2"}); !errors.Is(err, failure) {
		t.Errorf("RecordRun error = %v, want disk full", err)
	}

	want := []string{"sqlite:r1", "metrics:r1", "sqlite:r2", "metrics:r2", "api:r2"}
	if strings.Join(seen, ",") != strings.Join(want, ",") {
		t.Errorf("seen = %v, want %v", seen, want)
	}
}

type fakeStates struct {
	values  map[string]string
	ids     []string
	handler func(homeassistant.StateChange)
}

func (f *fakeStates) CurrentValue(entityID string) (string, bool) {
	v, ok := f.values[entityID]
	return v, ok
}

func (f *fakeStates) SubscribeChanges(entityIDs []string, handler func(homeassistant.StateChange)) (func(), error) {
	f.ids = entityIDs
	f.handler = handler
	return func() {}, nil
}

func TestEntityStates(t *testing.T) {
	fake := &fakeStates{values: map[string]string{"sensor.led_1_color": "Red"}}
	var source ledinput.StateSource = entityStates{source: fake}

	if v, ok := source.CurrentValue("sensor.led_1_color"); !ok || v != "Red" {
		t.Errorf("CurrentValue = %q, %v", v, ok)
	}
	if _, ok := source.CurrentValue("sensor.missing"); ok {
		t.Error("CurrentValue found a missing entity")
	}

	var got []ledinput.StateChange
	if _, err := source.SubscribeChanges([]string{"sensor.led_1_color"}, func(c ledinput.StateChange) {
		got = append(got, c)
	}); err != nil {
		t.Fatalf("SubscribeChanges: %v", err)
	}
	if len(fake.ids) != 1 || fake.ids[0] != "sensor.led_1_color" {
		t.Errorf("subscribed ids = %v", fake.ids)
	}

	fake.handler(homeassistant.StateChange{EntityID: "sensor.led_1_color", State: "Blue"})
	want := ledinput.StateChange{EntityID: "sensor.led_1_color", State: "Blue"}
	if len(got) != 1 || got[0] != want {
		t.Errorf("changes = %+v, want [%+v]", got, want)
	}
}
