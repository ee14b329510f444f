// Package config loads the demo and metaball settings from YAML.
//
// Defaults are embedded; a user file only needs the keys it overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gekko3d/metaballs/metaballrt/rt/core"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ProceduralNoise selects the generated noise texture instead of a file.
const ProceduralNoise = "procedural"

const proceduralNoiseSize = 128

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Window    WindowConfig    `yaml:"window"`
	Camera    CameraConfig    `yaml:"camera"`
	Metaballs MetaballsConfig `yaml:"metaballs"`
	Scene     SceneConfig     `yaml:"scene"`
	Emitters  []EmitterConfig `yaml:"emitters"`
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type CameraConfig struct {
	OrthographicSize float32 `yaml:"orthographic_size"` // half the visible height in world units
}

type MetaballsConfig struct {
	MaxParticleCount int     `yaml:"max_particle_count"`
	OutlineSize      float32 `yaml:"outline_size"`
	NoiseTexture     string  `yaml:"noise_texture"`
	NoiseSeed        int64   `yaml:"noise_seed"`
	RenderPassEvent  string  `yaml:"render_pass_event"`
	StrictSources    bool    `yaml:"strict_sources"`
}

type SceneConfig struct {
	VignetteStrength float32 `yaml:"vignette_strength"` // 0 disables the vignette
}

type EmitterConfig struct {
	Name             string     `yaml:"name"`
	Position         [2]float32 `yaml:"position"`
	DirectionDegrees float32    `yaml:"direction_degrees"` // 0 = +Y, counter-clockwise
	MaxParticles     int        `yaml:"max_particles"`
	SpawnRate        float32    `yaml:"spawn_rate"`
	Lifetime         [2]float32 `yaml:"lifetime"`
	Speed            [2]float32 `yaml:"speed"`
	Size             [2]float32 `yaml:"size"`
	ColorMin         [4]float32 `yaml:"color_min"`
	ColorMax         [4]float32 `yaml:"color_max"`
	Gravity          float32    `yaml:"gravity"`
	Drag             float32    `yaml:"drag"`
	ConeDegrees      float32    `yaml:"cone_degrees"`
	TimeToLive       float32    `yaml:"time_to_live"` // seconds, 0 = forever
}

var global *Config

// Init loads configuration from path, or the embedded defaults if path is empty.
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load reads a YAML file over the embedded defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse overlays data onto the embedded defaults and validates the result.
// Only keys present in data are overwritten; a present emitters list replaces
// the default list.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		bad("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Camera.OrthographicSize <= 0 {
		bad("camera.orthographic_size %v must be positive", c.Camera.OrthographicSize)
	}
	m := c.Metaballs
	if m.MaxParticleCount <= 0 {
		bad("metaballs.max_particle_count %d must be positive", m.MaxParticleCount)
	}
	if m.OutlineSize < 0 || m.OutlineSize > 1 {
		bad("metaballs.outline_size %v outside [0,1]", m.OutlineSize)
	}
	if _, err := core.ParseRenderPassEvent(m.RenderPassEvent); err != nil {
		bad("metaballs.render_pass_event: %v", err)
	}
	for i, e := range c.Emitters {
		if e.MaxParticles <= 0 {
			bad("emitters[%d] (%s): max_particles %d must be positive", i, e.Name, e.MaxParticles)
		}
		if e.TimeToLive < 0 {
			bad("emitters[%d] (%s): time_to_live %v", i, e.Name, e.TimeToLive)
		}
		if e.Lifetime[1] < e.Lifetime[0] || e.Lifetime[0] < 0 {
			bad("emitters[%d] (%s): lifetime %v", i, e.Name, e.Lifetime)
		}
	}
	return errors.Join(errs...)
}

// Settings converts the metaballs section, loading the noise texture if one is named.
func (c *Config) Settings() (core.Settings, error) {
	m := c.Metaballs
	event, err := core.ParseRenderPassEvent(m.RenderPassEvent)
	if err != nil {
		return core.Settings{}, err
	}
	s := core.Settings{
		MaxParticleCount: m.MaxParticleCount,
		OutlineSize:      m.OutlineSize,
		RenderPassEvent:  event,
		StrictSources:    m.StrictSources,
	}

	switch path := strings.TrimSpace(m.NoiseTexture); path {
	case "":
	case ProceduralNoise:
		s.NoiseTexture = core.NewProceduralNoise(proceduralNoiseSize, proceduralNoiseSize, m.NoiseSeed)
	default:
		tex, err := core.LoadNoiseTexture(path)
		if err != nil {
			return core.Settings{}, err
		}
		s.NoiseTexture = tex
	}
	return s, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
