// Package config provides unified configuration loading for gasprops.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/container"
	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/logging"
	"github.com/nvandessel/gasprops/internal/region"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config contains all gasprops configuration settings.
type Config struct {
	// Container is the geometry of the box holding the gas.
	Container ContainerConfig `json:"container" yaml:"container"`

	// Grid is the region grid used for collision detection.
	Grid GridConfig `json:"grid" yaml:"grid"`

	// Experiment holds the per-species parameters.
	Experiment diffusion.Experiment `json:"experiment" yaml:"experiment"`

	// Simulation controls how the model is stepped.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store configures the run history database.
	Store StoreConfig `json:"store" yaml:"store"`
}

// ContainerConfig describes the container in pm.
type ContainerConfig struct {
	Width            float64 `json:"width" yaml:"width"`
	Height           float64 `json:"height" yaml:"height"`
	WallThickness    float64 `json:"wall_thickness" yaml:"wall_thickness"`
	DividerThickness float64 `json:"divider_thickness" yaml:"divider_thickness"`

	// DividerX defaults to the middle of the container when zero.
	DividerX float64 `json:"divider_x,omitempty" yaml:"divider_x,omitempty"`

	// Opening is an optional gap in the top wall.
	Opening *OpeningConfig `json:"opening,omitempty" yaml:"opening,omitempty"`
}

// OpeningConfig is a gap in the top wall between Left and Right.
type OpeningConfig struct {
	Left  float64 `json:"left" yaml:"left"`
	Right float64 `json:"right" yaml:"right"`
}

// GridConfig sets the number of collision regions.
type GridConfig struct {
	Rows    int `json:"rows" yaml:"rows"`
	Columns int `json:"columns" yaml:"columns"`
}

// SimulationConfig controls stepping.
type SimulationConfig struct {
	// TimeStep is the simulated time per step, in ps.
	TimeStep float64 `json:"time_step" yaml:"time_step"`

	// Steps is the default number of steps for "gasprops run".
	Steps int `json:"steps" yaml:"steps"`

	// Seed makes particle placement reproducible.
	Seed uint64 `json:"seed" yaml:"seed"`

	// FlowRateAveragingTime is the flow-rate window, in ps.
	FlowRateAveragingTime float64 `json:"flow_rate_averaging_time" yaml:"flow_rate_averaging_time"`

	// CollisionCounterAveragingTime is the collision counter sample period, in ps.
	CollisionCounterAveragingTime float64 `json:"collision_counter_averaging_time" yaml:"collision_counter_averaging_time"`

	// SampleEvery records observables every N steps.
	SampleEvery int `json:"sample_every" yaml:"sample_every"`
}

// LoggingConfig configures gasprops's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to ~/.gasprops/events.jsonl.
	// "trace" additionally logs every step.
	Level string `json:"level" yaml:"level"`

	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format"`
}

// StoreConfig configures the run history.
type StoreConfig struct {
	// Enabled records runs in the history database.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file. Empty means ~/.gasprops/history.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Container: ContainerConfig{
			Width:            constants.DefaultContainerWidth,
			Height:           constants.DefaultContainerHeight,
			WallThickness:    constants.DefaultWallThickness,
			DividerThickness: constants.DefaultDividerThickness,
		},
		Grid: GridConfig{
			Rows:    constants.DefaultGridRows,
			Columns: constants.DefaultGridColumns,
		},
		Experiment: diffusion.DefaultExperiment(),
		Simulation: SimulationConfig{
			TimeStep:                      constants.DefaultTimeStep,
			Steps:                         1000,
			Seed:                          1,
			FlowRateAveragingTime:         constants.DefaultFlowRateAveragingTime,
			CollisionCounterAveragingTime: constants.DefaultCollisionCounterAveragingTime,
			SampleEvery:                   10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Enabled: true,
		},
	}
}

// Dir returns ~/.gasprops.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".gasprops"), nil
}

// Path returns ~/.gasprops/config.yaml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.gasprops/config.yaml -> environment variables
func Load() (*Config, error) {
	cfg := Default()

	if path, err := Path(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			cfg = fileConfig
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Store.Path = os.ExpandEnv(cfg.Store.Path)
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// StorePath returns the history database path, defaulting to ~/.gasprops/history.db.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// ModelOptions converts the configuration into options for diffusion.New.
func (c *Config) ModelOptions() diffusion.Options {
	cc := c.Container
	dividerX := cc.DividerX
	if dividerX == 0 {
		dividerX = cc.Width / 2
	}
	opts := diffusion.Options{
		Container: container.Options{
			Bounds:        r2.Box{Max: r2.Vec{X: cc.Width, Y: cc.Height}},
			WallThickness: cc.WallThickness,
			Divider:       &container.Divider{X: dividerX, Thickness: cc.DividerThickness},
		},
		GridRows:              c.Grid.Rows,
		GridColumns:           c.Grid.Columns,
		Experiment:            c.Experiment,
		FlowRateAveragingTime: c.Simulation.FlowRateAveragingTime,
		Seed:                  c.Simulation.Seed,
	}
	if o := cc.Opening; o != nil {
		opts.Container.Opening = &container.Opening{Left: o.Left, Right: o.Right}
	}
	return opts
}

// Validate checks that the configuration is valid. Geometry, ranges and
// the grid cell size are all checked here so that no step ever runs with a
// configuration the model would reject.
func (c *Config) Validate() error {
	if c.Simulation.TimeStep <= 0 {
		return fmt.Errorf("%w: time_step must be positive, got %g", ErrInvalidConfig, c.Simulation.TimeStep)
	}
	if c.Simulation.Steps < 0 {
		return fmt.Errorf("%w: steps must be non-negative, got %d", ErrInvalidConfig, c.Simulation.Steps)
	}
	if c.Simulation.SampleEvery < 1 {
		return fmt.Errorf("%w: sample_every must be at least 1, got %d", ErrInvalidConfig, c.Simulation.SampleEvery)
	}
	if c.Simulation.FlowRateAveragingTime <= 0 {
		return fmt.Errorf("%w: flow_rate_averaging_time must be positive, got %g", ErrInvalidConfig, c.Simulation.FlowRateAveragingTime)
	}
	if !slices.Contains(constants.CollisionCounterAveragingTimes, c.Simulation.CollisionCounterAveragingTime) {
		return fmt.Errorf("%w: collision_counter_averaging_time must be one of %v, got %g",
			ErrInvalidConfig, constants.CollisionCounterAveragingTimes, c.Simulation.CollisionCounterAveragingTime)
	}

	if c.Logging.Level != "" && !slices.Contains(logging.Levels, c.Logging.Level) {
		return fmt.Errorf("%w: invalid log level: %s (valid: %s, or empty for default)", ErrInvalidConfig, c.Logging.Level, strings.Join(logging.Levels, ", "))
	}
	if f := c.Logging.Format; f != "" && f != "text" && f != "json" {
		return fmt.Errorf("%w: invalid log format: %s (valid: text, json)", ErrInvalidConfig, f)
	}

	opts := c.ModelOptions()
	ctr, err := container.New(opts.Container)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	g, err := region.NewGrid(c.Grid.Rows, c.Grid.Columns, ctr.Bounds())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Experiment.Validate(ctr, g); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// applyEnvOverrides applies GASPROPS_* environment variable overrides.
func applyEnvOverrides(cfg *Config) error {
	for _, key := range Keys() {
		env := EnvName(key)
		if v, ok := os.LookupEnv(env); ok && v != "" {
			if err := cfg.Set(key, v); err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
		}
	}
	if v := os.Getenv("GASPROPS_DB"); v != "" {
		cfg.Store.Path = v
	}
	return nil
}

func parseBool(v string) bool { return v == "true" || v == "1" }

func parseFloat(key, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q is not a number", key, v)
	}
	return f, nil
}

func parseInt(key, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q is not an integer", key, v)
	}
	return n, nil
}
