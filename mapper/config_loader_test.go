package mapper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwv/odomesh/odometry"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func validConfigYAML() string {
	return `mqtt:
  broker: tcp://localhost:1883
  publishPrefix: odomesh
  clientId: odomesh-test
robot:
  id: rc-1
  topic: robots/rc-1/odometry
  wheelDiameter: 7
  wheelbase: 16
  encoderPulsesPerRevolution: 40
  maxPathHistory: 500
mapping:
  strategy: wall-detection
  angleThreshold: 45
  roomName: Kitchen
  seed: 42
filter:
  enabled: true
roomBounds:
  - {x: 0, y: 0}
  - {x: 4, y: 0}
  - {x: 4, y: 3}
  - {x: 0, y: 3}
`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

// ---------------------------------------------------------------------------
// LoadConfig
// ---------------------------------------------------------------------------

func TestLoadConfig_NotExists(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "robot: [unterminated"))
	assert.Error(t, err)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfigYAML()))
	require.NoError(t, err)

	if cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("Broker = %q, want %q", cfg.MQTT.Broker, "tcp://localhost:1883")
	}
	if cfg.Robot.ID != "rc-1" {
		t.Errorf("Robot.ID = %q, want %q", cfg.Robot.ID, "rc-1")
	}

	want := odometry.Config{WheelDiameter: 7, Wheelbase: 16, EncoderPulsesPerRevolution: 40, MaxPathHistory: 500}
	assert.Equal(t, want, cfg.Robot.Odometry())

	strategy, err := cfg.Mapping.GetStrategy()
	require.NoError(t, err)
	assert.Equal(t, odometry.WallDetection, strategy)
	assert.Equal(t, "Kitchen", cfg.Mapping.RoomName)
	assert.Equal(t, int64(42), cfg.Mapping.Seed)
	assert.True(t, cfg.Filter.Enabled)
	assert.Len(t, cfg.RoomBounds, 4)
	assert.Equal(t, odometry.Vertex{X: 4, Y: 3}, cfg.RoomBounds[2])
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "robot:\n  id: solo\n"))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, "solo", cfg.Robot.ID)
	assert.Equal(t, def.Robot.Wheelbase, cfg.Robot.Wheelbase)
	assert.Equal(t, def.Mapping, cfg.Mapping)
	assert.Equal(t, DefaultPublishPrefix, cfg.MQTT.PublishPrefix)
	assert.Equal(t, DefaultRoomCachePath, cfg.RoomCache)
	assert.Empty(t, cfg.MQTT.Broker, "broker is optional")
	assert.False(t, cfg.Filter.Enabled)
	assert.Equal(t, "robots/solo/odometry", cfg.Robot.TopicOrDefault())
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantOdo bool
	}{
		{name: "empty robot id", yaml: "robot:\n  id: \"\"\n"},
		{name: "zero wheelbase", yaml: "robot:\n  wheelbase: 0\n", wantOdo: true},
		{name: "negative diameter", yaml: "robot:\n  wheelDiameter: -1\n", wantOdo: true},
		{name: "zero pulses", yaml: "robot:\n  encoderPulsesPerRevolution: 0\n", wantOdo: true},
		{name: "unknown strategy", yaml: "mapping:\n  strategy: voronoi\n"},
		{name: "negative box margin", yaml: "mapping:\n  boxMargin: -0.1\n"},
		{name: "negative hull margin", yaml: "mapping:\n  hullMargin: -1\n"},
		{name: "zero angle threshold", yaml: "mapping:\n  angleThreshold: 0\n"},
		{name: "angle threshold over 180", yaml: "mapping:\n  angleThreshold: 190\n"},
		{name: "negative publishEvery", yaml: "mapping:\n  publishEvery: -1\n"},
		{name: "two room bound vertices", yaml: "roomBounds:\n  - {x: 0, y: 0}\n  - {x: 1, y: 1}\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatalf("expected validation error for %q, got nil", tc.name)
			}
			if got := errors.Is(err, odometry.ErrInvalidConfiguration); got != tc.wantOdo {
				t.Errorf("errors.Is(err, ErrInvalidConfiguration) = %v, want %v (err: %v)", got, tc.wantOdo, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// SaveConfig
// ---------------------------------------------------------------------------

func TestSaveConfig_RoundTrip(t *testing.T) {
	original, err := LoadConfig(writeConfig(t, validConfigYAML()))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveConfig(path, original))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestSaveConfig_BadPath(t *testing.T) {
	err := SaveConfig(filepath.Join(t.TempDir(), "missing", "dir", "config.yaml"), DefaultConfig())
	assert.Error(t, err)
}

func TestMappingConfig_Params(t *testing.T) {
	mc := DefaultConfig().Mapping
	mc.AngleThreshold = 90

	params := mc.Params(nil)
	assert.Equal(t, odometry.DefaultBoxMargin, params.BoxMargin)
	assert.Equal(t, odometry.DefaultHullMargin, params.HullMargin)
	assert.InDelta(t, 1.5707963267948966, params.AngleThreshold, 1e-12)
	assert.Nil(t, params.Jitter)
}
