package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight int    `toml:"frames_in_flight"`
	Width          uint32 `toml:"width"`
	Height         uint32 `toml:"height"`
	ShadowMapSize  uint32 `toml:"shadow_map_size"`
	FenceTimeoutMs int    `toml:"fence_timeout_ms"`
	// Render without a window, against the software present target.
	Headless bool `toml:"headless"`
}

type CameraConfig struct {
	FOVDegrees float32 `toml:"fov_degrees"`
	Near       float32 `toml:"near"`
	Far        float32 `toml:"far"`
}

type LightConfig struct {
	Position [3]float32 `toml:"position"`
}

type MaterialConfig struct {
	Name    string     `toml:"name"`
	Ambient [4]float32 `toml:"ambient"`
	Diffuse [4]float32 `toml:"diffuse"`
}

// Config is the on-disk application configuration. The material entries are
// hot-reloadable; everything else is fixed at startup.
type Config struct {
	LogLevel  string           `toml:"log_level"`
	Window    WindowConfig     `toml:"window"`
	Renderer  RendererConfig   `toml:"renderer"`
	Camera    CameraConfig     `toml:"camera"`
	Light     LightConfig      `toml:"light"`
	Materials []MaterialConfig `toml:"material"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	config := &Config{}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Window.Title == "" {
		c.Window.Title = "Lumen"
	}
	if c.Window.Width == 0 {
		c.Window.Width = 1280
	}
	if c.Window.Height == 0 {
		c.Window.Height = 720
	}
	if c.Renderer.FramesInFlight == 0 {
		c.Renderer.FramesInFlight = 3
	}
	if c.Renderer.Width == 0 {
		c.Renderer.Width = c.Window.Width
	}
	if c.Renderer.Height == 0 {
		c.Renderer.Height = c.Window.Height
	}
	if c.Renderer.ShadowMapSize == 0 {
		c.Renderer.ShadowMapSize = 256
	}
	if c.Renderer.FenceTimeoutMs == 0 {
		c.Renderer.FenceTimeoutMs = 5000
	}
	if c.Camera.FOVDegrees == 0 {
		c.Camera.FOVDegrees = 45
	}
	if c.Camera.Near == 0 {
		c.Camera.Near = 0.1
	}
	if c.Camera.Far == 0 {
		c.Camera.Far = 100
	}
}

func (c *Config) validate() error {
	if c.Renderer.FramesInFlight < 2 {
		return fmt.Errorf("renderer.frames_in_flight must be >= 2, got %d", c.Renderer.FramesInFlight)
	}
	if len(c.Materials) == 0 {
		return fmt.Errorf("at least one [[material]] entry is required")
	}
	if len(c.Materials) > renderer.MaxMaterials {
		return fmt.Errorf("%d materials exceed the table capacity %d", len(c.Materials), renderer.MaxMaterials)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera clip planes are invalid (near %f, far %f)", c.Camera.Near, c.Camera.Far)
	}
	return nil
}

// ParsedLogLevel maps the configured log level onto the logging backend,
// defaulting to info.
func (c *Config) ParsedLogLevel() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func (c *Config) FenceTimeout() time.Duration {
	return time.Duration(c.Renderer.FenceTimeoutMs) * time.Millisecond
}

func (c *Config) Projection() renderer.Projection {
	return renderer.Projection{
		FOVRadians: c.Camera.FOVDegrees * kmath.K_DEG2RAD_MULTIPLIER,
		Near:       c.Camera.Near,
		Far:        c.Camera.Far,
	}
}

func (c *Config) LightPosition() kmath.Vec3 {
	return kmath.NewVec3(c.Light.Position[0], c.Light.Position[1], c.Light.Position[2])
}

// MaterialEntries converts the configured materials into table entries.
func (c *Config) MaterialEntries() []renderer.Material {
	out := make([]renderer.Material, len(c.Materials))
	for i, m := range c.Materials {
		out[i] = renderer.Material{
			AmbientColor: kmath.NewVec4(m.Ambient[0], m.Ambient[1], m.Ambient[2], m.Ambient[3]),
			DiffuseColor: kmath.NewVec4(m.Diffuse[0], m.Diffuse[1], m.Diffuse[2], m.Diffuse[3]),
		}
	}
	return out
}

// OrchestratorConfig assembles the frame ring configuration.
func (c *Config) OrchestratorConfig() renderer.Config {
	return renderer.Config{
		FramesInFlight: c.Renderer.FramesInFlight,
		Width:          c.Renderer.Width,
		Height:         c.Renderer.Height,
		ShadowMapSize:  c.Renderer.ShadowMapSize,
		FenceTimeout:   c.FenceTimeout(),
		Projection:     c.Projection(),
	}
}
