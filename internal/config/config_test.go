package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/overlay/internal/transform"
	"github.com/dyluth/overlay/internal/viewport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
scale_mode: fill
font:
  min_point: 8
  max_point: 30
  normal_point: 14
  legacy_step: 3
broadcaster:
  port_file: /run/overlay/port.json
  max_ack_attempts: 5
  dial_timeout: 1s
  reconnect:
    initial_interval: 250ms
    max_interval: 5s
render:
  tick: 50ms
relay:
  redis_url: redis://localhost:6379/0
  channel: stage
health:
  port: 8089
groups:
  - name: hud
    prefixes: ["hud_", "hud-"]
    band_min_x: 0
    band_min_y: 0
    band_max_x: 400
    band_max_y: 100
    anchor: top-left
    scale: 1.5
`)
	t.Setenv(PortFileEnv, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, viewport.ScaleFill, cfg.ScaleMode)
	assert.Equal(t, transform.FontConfig{MinPoint: 8, MaxPoint: 30, NormalPoint: 14, LegacyStep: 3}, cfg.Font.Transform())
	assert.Equal(t, "/run/overlay/port.json", cfg.Broadcaster.PortFile)
	assert.Equal(t, 5, cfg.Broadcaster.MaxAckAttempts)
	assert.Equal(t, time.Second, cfg.Broadcaster.DialTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Broadcaster.Reconnect.InitialInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.Render.Tick)
	assert.Equal(t, "stage", cfg.Relay.Channel)
	assert.Equal(t, 8089, cfg.Health.Port)

	require.Len(t, cfg.Groups, 1)
	group, err := cfg.Groups[0].Group()
	require.NoError(t, err)
	assert.Equal(t, transform.AnchorNW, group.Anchor)
	assert.Equal(t, 1.5, group.Scale)

	client := cfg.Broadcaster.ClientConfig()
	assert.Equal(t, "/run/overlay/port.json", client.PortFile)
	assert.Equal(t, 5*time.Second, client.MaxInterval)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/overlay.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
groups:
  - this is invalid
    yaml syntax
`)

	config, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv(PortFileEnv, "")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, viewport.ScaleFit, cfg.ScaleMode)

	_, err = LoadOrDefault(writeConfig(t, `version: "2.0"`))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Setenv(PortFileEnv, "")
	cfg := Default()

	assert.Equal(t, viewport.ScaleFit, cfg.ScaleMode)
	assert.Equal(t, transform.DefaultFontConfig(), cfg.Font.Transform())
	assert.Equal(t, DefaultPortFile, cfg.Broadcaster.PortFile)
	assert.Equal(t, "127.0.0.1", cfg.Broadcaster.Host)
	assert.Equal(t, 10, cfg.Broadcaster.MaxAckAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Render.Tick)
	assert.Nil(t, cfg.Relay)
	assert.Nil(t, cfg.Health)
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	config := &OverlayConfig{Version: "2.0"}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version: 2.0")
}

func TestValidate_ScaleMode(t *testing.T) {
	config := &OverlayConfig{Version: "1.0", ScaleMode: "stretch"}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scale mode")
}

func TestValidate_FontClamping(t *testing.T) {
	tests := []struct {
		name string
		in   FontConfig
		want transform.FontConfig
	}{
		{
			name: "min raised to one",
			in:   FontConfig{MinPoint: -4, MaxPoint: 20, NormalPoint: 10},
			want: transform.FontConfig{MinPoint: 1, MaxPoint: 20, NormalPoint: 10, LegacyStep: 2},
		},
		{
			name: "max raised to min",
			in:   FontConfig{MinPoint: 12, MaxPoint: 8, NormalPoint: 10},
			want: transform.FontConfig{MinPoint: 12, MaxPoint: 12, NormalPoint: 12, LegacyStep: 2},
		},
		{
			name: "normal clamped into range",
			in:   FontConfig{MinPoint: 6, MaxPoint: 24, NormalPoint: 40},
			want: transform.FontConfig{MinPoint: 6, MaxPoint: 24, NormalPoint: 24, LegacyStep: 2},
		},
		{
			name: "legacy step clamped",
			in:   FontConfig{LegacyStep: ptr(25.0)},
			want: transform.FontConfig{MinPoint: 6, MaxPoint: 24, NormalPoint: 12, LegacyStep: 10},
		},
		{
			name: "zero legacy step kept",
			in:   FontConfig{LegacyStep: ptr(0.0)},
			want: transform.FontConfig{MinPoint: 6, MaxPoint: 24, NormalPoint: 12, LegacyStep: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			font := tt.in
			config := &OverlayConfig{Version: "1.0", Font: &font}
			require.NoError(t, config.Validate())
			assert.Equal(t, tt.want, config.Font.Transform())
		})
	}
}

func TestValidate_Broadcaster(t *testing.T) {
	t.Run("env overrides port file", func(t *testing.T) {
		t.Setenv(PortFileEnv, "/tmp/from-env.json")
		config := &OverlayConfig{Version: "1.0", Broadcaster: &BroadcasterConfig{PortFile: "/tmp/from-file.json"}}
		require.NoError(t, config.Validate())
		assert.Equal(t, "/tmp/from-env.json", config.Broadcaster.PortFile)
	})

	t.Run("negative ack attempts rejected", func(t *testing.T) {
		config := &OverlayConfig{Version: "1.0", Broadcaster: &BroadcasterConfig{MaxAckAttempts: -1}}
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_ack_attempts must be >= 1")
	})

	t.Run("max interval raised to initial", func(t *testing.T) {
		config := &OverlayConfig{Version: "1.0", Broadcaster: &BroadcasterConfig{
			Reconnect: &ReconnectConfig{InitialInterval: 2 * time.Second, MaxInterval: time.Second},
		}}
		require.NoError(t, config.Validate())
		assert.Equal(t, 2*time.Second, config.Broadcaster.Reconnect.MaxInterval)
	})
}

func TestValidate_RenderTickFloor(t *testing.T) {
	config := &OverlayConfig{Version: "1.0", Render: &RenderConfig{Tick: time.Millisecond}}
	require.NoError(t, config.Validate())
	assert.Equal(t, 10*time.Millisecond, config.Render.Tick)
}

func TestValidate_Relay(t *testing.T) {
	config := &OverlayConfig{Version: "1.0", Relay: &RelayConfig{}}
	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "relay.redis_url is required")

	config = &OverlayConfig{Version: "1.0", Relay: &RelayConfig{RedisURL: "redis://localhost:6379"}}
	require.NoError(t, config.Validate())
	assert.Equal(t, "default", config.Relay.Channel)
}

func TestValidate_HealthPort(t *testing.T) {
	config := &OverlayConfig{Version: "1.0", Health: &HealthConfig{Port: 70000}}
	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "health.port")
}

func TestValidate_Groups(t *testing.T) {
	t.Run("duplicate names", func(t *testing.T) {
		config := &OverlayConfig{Version: "1.0", Groups: []GroupConfig{
			{Name: "hud", BandMaxX: 10, BandMaxY: 10},
			{Name: "hud", BandMaxX: 20, BandMaxY: 20},
		}}
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate group name 'hud'")
	})

	t.Run("bad anchor", func(t *testing.T) {
		config := &OverlayConfig{Version: "1.0", Groups: []GroupConfig{
			{Name: "hud", Anchor: "upward"},
		}}
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid anchor")
	})

	t.Run("inverted band", func(t *testing.T) {
		config := &OverlayConfig{Version: "1.0", Groups: []GroupConfig{
			{Name: "hud", BandMinX: 50, BandMaxX: 10},
		}}
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "band max must not be less than band min")
	})
}

func ptr[T any](v T) *T {
	return &v
}
