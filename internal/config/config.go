package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/overlay/internal/transform"
	"github.com/dyluth/overlay/internal/viewport"
	"github.com/dyluth/overlay/pkg/protocol"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "overlay.yml"

// PortFileEnv overrides broadcaster.port_file.
const PortFileEnv = "OVERLAY_PORT_FILE"

// DefaultPortFile is the broadcaster's well-known port document.
const DefaultPortFile = "/tmp/overlay-broadcaster.json"

const (
	maxLegacyStep = 10
	minTick       = 10 * time.Millisecond
)

// OverlayConfig represents the top-level overlay.yml configuration
type OverlayConfig struct {
	Version     string             `yaml:"version"`
	ScaleMode   viewport.ScaleMode `yaml:"scale_mode,omitempty"`
	Font        *FontConfig        `yaml:"font,omitempty"`
	Broadcaster *BroadcasterConfig `yaml:"broadcaster,omitempty"`
	Render      *RenderConfig      `yaml:"render,omitempty"`
	Relay       *RelayConfig       `yaml:"relay,omitempty"`
	Health      *HealthConfig      `yaml:"health,omitempty"`
	Groups      []GroupConfig      `yaml:"groups,omitempty"`
}

// FontConfig bounds the point sizes produced for messages
type FontConfig struct {
	MinPoint    float64  `yaml:"min_point,omitempty"`
	MaxPoint    float64  `yaml:"max_point,omitempty"`
	NormalPoint float64  `yaml:"normal_point,omitempty"`
	LegacyStep  *float64 `yaml:"legacy_step,omitempty"`
}

// BroadcasterConfig locates the broadcaster and tunes the client
type BroadcasterConfig struct {
	PortFile       string           `yaml:"port_file,omitempty"`
	Host           string           `yaml:"host,omitempty"`
	MaxAckAttempts int              `yaml:"max_ack_attempts,omitempty"`
	DialTimeout    time.Duration    `yaml:"dial_timeout,omitempty"`
	Reconnect      *ReconnectConfig `yaml:"reconnect,omitempty"`
}

// ReconnectConfig is the exponential backoff policy. MaxElapsed 0 retries forever.
type ReconnectConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
	MaxInterval     time.Duration `yaml:"max_interval,omitempty"`
	MaxElapsed      time.Duration `yaml:"max_elapsed,omitempty"`
}

// RenderConfig controls the frame loop
type RenderConfig struct {
	Tick time.Duration `yaml:"tick,omitempty"`
}

// RelayConfig enables the Redis payload relay
type RelayConfig struct {
	RedisURL string `yaml:"redis_url"`
	Channel  string `yaml:"channel"`
}

// HealthConfig enables the health endpoint. Port 0 disables it.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// GroupConfig is a static group definition loaded at startup
type GroupConfig struct {
	Name        string   `yaml:"name"`
	Prefixes    []string `yaml:"prefixes"`
	BandMinX    float64  `yaml:"band_min_x"`
	BandMinY    float64  `yaml:"band_min_y"`
	BandMaxX    float64  `yaml:"band_max_x"`
	BandMaxY    float64  `yaml:"band_max_y"`
	BandAnchorX *float64 `yaml:"band_anchor_x,omitempty"`
	BandAnchorY *float64 `yaml:"band_anchor_y,omitempty"`
	Anchor      string   `yaml:"anchor,omitempty"`
	DX          float64  `yaml:"dx,omitempty"`
	DY          float64  `yaml:"dy,omitempty"`
	Scale       float64  `yaml:"scale,omitempty"`
}

// Group converts the definition into a transform group.
func (g GroupConfig) Group() (transform.Group, error) {
	anchor, err := transform.ParseAnchor(g.Anchor)
	if err != nil {
		return transform.Group{}, fmt.Errorf("group '%s': %w", g.Name, err)
	}
	group := transform.Group{
		Name:        g.Name,
		Prefixes:    g.Prefixes,
		BandMinX:    g.BandMinX,
		BandMinY:    g.BandMinY,
		BandMaxX:    g.BandMaxX,
		BandMaxY:    g.BandMaxY,
		BandAnchorX: g.BandAnchorX,
		BandAnchorY: g.BandAnchorY,
		Anchor:      anchor,
		DX:          g.DX,
		DY:          g.DY,
		Scale:       g.Scale,
	}
	if err := group.Validate(); err != nil {
		return transform.Group{}, err
	}
	return group, nil
}

// Default returns a validated configuration for running without a file.
func Default() *OverlayConfig {
	cfg := &OverlayConfig{Version: "1.0"}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration and fills defaults. Out-of-range font
// and timing values are clamped rather than rejected.
func (c *OverlayConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.ScaleMode == "" {
		c.ScaleMode = viewport.ScaleFit
	}
	if err := c.ScaleMode.Validate(); err != nil {
		return err
	}

	if c.Font == nil {
		c.Font = &FontConfig{}
	}
	c.Font.clamp()

	if c.Broadcaster == nil {
		c.Broadcaster = &BroadcasterConfig{}
	}
	if err := c.Broadcaster.validate(); err != nil {
		return err
	}

	if c.Render == nil {
		c.Render = &RenderConfig{}
	}
	if c.Render.Tick == 0 {
		c.Render.Tick = 100 * time.Millisecond
	}
	if c.Render.Tick < minTick {
		c.Render.Tick = minTick
	}

	if c.Relay != nil {
		if c.Relay.RedisURL == "" {
			return fmt.Errorf("relay.redis_url is required when relay is configured")
		}
		if c.Relay.Channel == "" {
			c.Relay.Channel = "default"
		}
	}

	if c.Health != nil && (c.Health.Port < 0 || c.Health.Port > 65535) {
		return fmt.Errorf("health.port must be between 0 and 65535, got %d", c.Health.Port)
	}

	seen := make(map[string]bool)
	for i, g := range c.Groups {
		if _, err := g.Group(); err != nil {
			return fmt.Errorf("groups[%d]: %w", i, err)
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate group name '%s'", g.Name)
		}
		seen[g.Name] = true
	}

	return nil
}

func (f *FontConfig) clamp() {
	def := transform.DefaultFontConfig()
	if f.MinPoint == 0 {
		f.MinPoint = def.MinPoint
	}
	if f.MaxPoint == 0 {
		f.MaxPoint = def.MaxPoint
	}
	if f.NormalPoint == 0 {
		f.NormalPoint = def.NormalPoint
	}
	if f.LegacyStep == nil {
		step := def.LegacyStep
		f.LegacyStep = &step
	}

	if f.MinPoint < 1 {
		f.MinPoint = 1
	}
	if f.MaxPoint < f.MinPoint {
		f.MaxPoint = f.MinPoint
	}
	f.NormalPoint = clampFloat(f.NormalPoint, f.MinPoint, f.MaxPoint)
	step := clampFloat(*f.LegacyStep, 0, maxLegacyStep)
	f.LegacyStep = &step
}

// Transform returns the font settings used by the transform engine.
func (f *FontConfig) Transform() transform.FontConfig {
	return transform.FontConfig{
		MinPoint:    f.MinPoint,
		MaxPoint:    f.MaxPoint,
		NormalPoint: f.NormalPoint,
		LegacyStep:  *f.LegacyStep,
	}
}

func (b *BroadcasterConfig) validate() error {
	if env := os.Getenv(PortFileEnv); env != "" {
		b.PortFile = env
	}
	if b.PortFile == "" {
		b.PortFile = DefaultPortFile
	}
	if b.Host == "" {
		b.Host = protocol.DefaultHost
	}
	if b.MaxAckAttempts == 0 {
		b.MaxAckAttempts = protocol.DefaultMaxAckAttempts
	}
	if b.MaxAckAttempts < 1 {
		return fmt.Errorf("broadcaster.max_ack_attempts must be >= 1, got %d", b.MaxAckAttempts)
	}
	if b.DialTimeout <= 0 {
		b.DialTimeout = 2 * time.Second
	}

	if b.Reconnect == nil {
		b.Reconnect = &ReconnectConfig{}
	}
	r := b.Reconnect
	if r.InitialInterval <= 0 {
		r.InitialInterval = 500 * time.Millisecond
	}
	if r.MaxInterval <= 0 {
		r.MaxInterval = 30 * time.Second
	}
	if r.MaxInterval < r.InitialInterval {
		r.MaxInterval = r.InitialInterval
	}
	if r.MaxElapsed < 0 {
		return fmt.Errorf("broadcaster.reconnect.max_elapsed must be >= 0 (0 = forever)")
	}
	return nil
}

// ClientConfig returns the protocol client settings.
func (b *BroadcasterConfig) ClientConfig() protocol.Config {
	return protocol.Config{
		PortFile:        b.PortFile,
		Host:            b.Host,
		DialTimeout:     b.DialTimeout,
		MaxAckAttempts:  b.MaxAckAttempts,
		InitialInterval: b.Reconnect.InitialInterval,
		MaxInterval:     b.Reconnect.MaxInterval,
		MaxElapsed:      b.Reconnect.MaxElapsed,
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Load reads and validates overlay.yml from the specified path
func Load(path string) (*OverlayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config OverlayConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*OverlayConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}
