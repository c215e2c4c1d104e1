package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"runtime"

	"github.com/Carmen-Shannon/voxel-go/engine/compute"
	"github.com/Carmen-Shannon/voxel-go/engine/spatial/octree"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfigPath  = "VOXEL_CONFIG"
	EnvBackend     = "VOXEL_BACKEND"
	EnvMetricsAddr = "VOXEL_METRICS_ADDR"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root of the voxel viewer configuration.
type Config struct {
	Grid        GridConfig    `yaml:"grid"`
	Compute     ComputeConfig `yaml:"compute"`
	Window      WindowConfig  `yaml:"window"`
	Simulation  SimConfig     `yaml:"simulation"`
	Profiling   bool          `yaml:"profiling"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// GridConfig describes the initial grid.
type GridConfig struct {
	Dim           uint32     `yaml:"dim"`
	Octree        bool       `yaml:"octree"`
	SandColor     [3]float32 `yaml:"sand_color"`
	ColorVariance float32    `yaml:"color_variance"`
	Seed          int64      `yaml:"seed"`
}

// ComputeConfig selects and sizes the compute backend.
type ComputeConfig struct {
	Backend       string `yaml:"backend"`
	WorkGroupSize uint32 `yaml:"workgroup_size"`
	Workers       int    `yaml:"workers"`
	VSync         bool   `yaml:"vsync"`
}

// WindowConfig sizes the window and the output image.
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// SimConfig holds the tick and physics rates and the brush size.
type SimConfig struct {
	TickRate    float64 `yaml:"tick_rate"`
	PhysicsRate float64 `yaml:"physics_rate"`
	BrushSize   uint32  `yaml:"brush_size"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - *Config: a fresh default configuration
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			Dim:           128,
			Octree:        true,
			SandColor:     [3]float32{0.5, 0.3, 0.1},
			ColorVariance: 0.05,
			Seed:          1,
		},
		Compute: ComputeConfig{
			Backend:       compute.BackendTypeWGPU.String(),
			WorkGroupSize: 8,
			Workers:       runtime.NumCPU(),
			VSync:         true,
		},
		Window: WindowConfig{
			Title:  "voxel-go",
			Width:  1920,
			Height: 1080,
		},
		Simulation: SimConfig{
			TickRate:    60,
			PhysicsRate: 30,
			BrushSize:   3,
		},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
// If path is empty, the VOXEL_CONFIG environment variable is used; if that is empty too the
// defaults are returned. VOXEL_BACKEND and VOXEL_METRICS_ADDR override the file.
//
// Parameters:
//   - path: the config file path, or ""
//
// Returns:
//   - *Config: the loaded configuration
//   - error: if the file cannot be read or parsed, or the result is invalid
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Compute.Backend = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		cfg.MetricsAddr = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode unmarshals data over the receiver, rejecting unknown keys.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for values the viewer cannot run with.
//
// Returns:
//   - error: ErrInvalidConfig (wrapped) describing the first problem found
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Grid.Dim == 0 {
		return invalid("grid.dim must be positive")
	}
	if c.Grid.Octree && c.Grid.Dim > octree.Extent {
		return invalid("grid.dim %d exceeds the octree range %d; disable grid.octree or shrink the grid", c.Grid.Dim, octree.Extent)
	}
	for i, ch := range c.Grid.SandColor {
		if ch < 0 || ch > 1 {
			return invalid("grid.sand_color[%d] = %v is outside [0, 1]", i, ch)
		}
	}
	if _, err := compute.ParseBackendType(c.Compute.Backend); err != nil {
		return invalid("%v", err)
	}
	if n := c.Compute.WorkGroupSize; n == 0 || bits.OnesCount32(n) != 1 {
		return invalid("compute.workgroup_size %d must be a power of two", n)
	}
	if c.Compute.Workers < 0 {
		return invalid("compute.workers must not be negative")
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return invalid("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Simulation.TickRate <= 0 {
		return invalid("simulation.tick_rate must be positive")
	}
	if c.Simulation.PhysicsRate <= 0 {
		return invalid("simulation.physics_rate must be positive")
	}
	return nil
}

// BackendType returns the parsed compute backend.
func (c *Config) BackendType() compute.BackendType {
	t, _ := compute.ParseBackendType(c.Compute.Backend)
	return t
}

// PresentMode returns the present mode selected by compute.vsync.
func (c *Config) PresentMode() compute.PresentMode {
	if c.Compute.VSync {
		return compute.PresentModeVSync
	}
	return compute.PresentModeUncapped
}
