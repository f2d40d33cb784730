package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Container.Width != constants.DefaultContainerWidth || cfg.Container.Height != constants.DefaultContainerHeight {
		t.Errorf("unexpected container size %gx%g", cfg.Container.Width, cfg.Container.Height)
	}
	if cfg.Grid.Rows != constants.DefaultGridRows || cfg.Grid.Columns != constants.DefaultGridColumns {
		t.Errorf("unexpected grid %dx%d", cfg.Grid.Rows, cfg.Grid.Columns)
	}
	if cfg.Experiment != diffusion.DefaultExperiment() {
		t.Errorf("unexpected experiment %+v", cfg.Experiment)
	}
	if cfg.Simulation.TimeStep != constants.DefaultTimeStep {
		t.Errorf("expected time step %g, got %g", constants.DefaultTimeStep, cfg.Simulation.TimeStep)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", cfg.Logging.Level)
	}
	if !cfg.Store.Enabled {
		t.Error("expected the store to be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
container:
  width: 8000
  height: 4000
grid:
  rows: 2
  columns: 4
experiment:
  species1:
    number_of_particles: 50
    mass: 4
  species2:
    number_of_particles: 25
    radius: 200
simulation:
  time_step: 0.05
  seed: 42
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Container.Width != 8000 || cfg.Grid.Columns != 4 {
		t.Errorf("container/grid not loaded: %+v %+v", cfg.Container, cfg.Grid)
	}
	if cfg.Experiment.Species1.NumberOfParticles != 50 || cfg.Experiment.Species1.Mass != 4 {
		t.Errorf("species1 not loaded: %+v", cfg.Experiment.Species1)
	}
	if cfg.Experiment.Species1.Radius != constants.DefaultRadius {
		t.Errorf("missing keys should keep defaults, got radius %g", cfg.Experiment.Species1.Radius)
	}
	if cfg.Experiment.Species2.Radius != 200 {
		t.Errorf("species2 radius = %g, want 200", cfg.Experiment.Species2.Radius)
	}
	if cfg.Simulation.Seed != 42 || cfg.Simulation.TimeStep != 0.05 {
		t.Errorf("simulation not loaded: %+v", cfg.Simulation)
	}
	if cfg.Container.WallThickness != constants.DefaultWallThickness {
		t.Errorf("wall thickness = %g, want default", cfg.Container.WallThickness)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("grid: [1, 2"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Experiment.Species2.NumberOfParticles = 77
	cfg.Container.Opening = &OpeningConfig{Left: 1000, Right: 3000}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if loaded.Experiment.Species2.NumberOfParticles != 77 {
		t.Errorf("species2 count = %d, want 77", loaded.Experiment.Species2.NumberOfParticles)
	}
	if loaded.Container.Opening == nil || loaded.Container.Opening.Right != 3000 {
		t.Errorf("opening not saved: %+v", loaded.Container.Opening)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid default", func(*Config) {}, ""},
		{"zero time step", func(c *Config) { c.Simulation.TimeStep = 0 }, "time_step"},
		{"negative steps", func(c *Config) { c.Simulation.Steps = -1 }, "steps"},
		{"zero sample_every", func(c *Config) { c.Simulation.SampleEvery = 0 }, "sample_every"},
		{"bad flow window", func(c *Config) { c.Simulation.FlowRateAveragingTime = -1 }, "flow_rate_averaging_time"},
		{"bad counter time", func(c *Config) { c.Simulation.CollisionCounterAveragingTime = 7 }, "collision_counter_averaging_time"},
		{"warn log level", func(c *Config) { c.Logging.Level = "warn" }, ""},
		{"error log level", func(c *Config) { c.Logging.Level = "error" }, ""},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
		{"empty container", func(c *Config) { c.Container.Width = 0 }, "invalid container geometry"},
		{"divider outside", func(c *Config) { c.Container.DividerX = 20000 }, "divider"},
		{"opening inverted", func(c *Config) { c.Container.Opening = &OpeningConfig{Left: 500, Right: 100} }, "opening"},
		{"empty grid", func(c *Config) { c.Grid.Rows = 0 }, "grid"},
		{"cells too small", func(c *Config) { c.Grid.Rows, c.Grid.Columns = 64, 128 }, "cell"},
		{"too many particles", func(c *Config) { c.Experiment.Species1.NumberOfParticles = 500 }, "number of particles"},
		{"mass too small", func(c *Config) { c.Experiment.Species2.Mass = 1 }, "mass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLogLevelsMatchLogger(t *testing.T) {
	for _, level := range logging.Levels {
		cfg := Default()
		if err := cfg.Set("logging.level", level); err != nil {
			t.Errorf("Set(logging.level, %q) = %v", level, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() with level %q = %v", level, err)
		}
		if level != "info" && logging.ParseLevel(level) == slog.LevelInfo {
			t.Errorf("ParseLevel(%q) fell back to info", level)
		}
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"container.width", "9000", 9000.0},
		{"grid.rows", "3", 3},
		{"experiment.species2.mass", "4", 4.0},
		{"experiment.species1.number_of_particles", "120", 120},
		{"simulation.seed", "99", uint64(99)},
		{"logging.level", "trace", "trace"},
		{"store.enabled", "false", false},
		{"store.path", "/tmp/h.db", "/tmp/h.db"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := cfg.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%q, %q) = %v", tt.key, tt.value, err)
			}
			got, ok := cfg.Get(tt.key)
			if !ok {
				t.Fatalf("Get(%q) not found", tt.key)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %v (%T), want %v (%T)", tt.key, got, got, tt.want, tt.want)
			}
		})
	}

	if err := cfg.Set("grid.rows", "many"); err == nil {
		t.Error("expected error for non-integer rows")
	}
	if err := cfg.Set("logging.format", "xml"); err == nil {
		t.Error("expected error for invalid format")
	}
	if err := cfg.Set("no.such.key", "1"); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, ok := cfg.Get("no.such.key"); ok {
		t.Error("Get should not find unknown key")
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) == 0 {
		t.Fatal("no keys")
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Errorf("keys not sorted: %q before %q", keys[i-1], keys[i])
		}
	}
	if got := EnvName("experiment.species1.mass"); got != "GASPROPS_EXPERIMENT_SPECIES1_MASS" {
		t.Errorf("EnvName = %q", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GASPROPS_SIMULATION_TIME_STEP", "0.25")
	t.Setenv("GASPROPS_EXPERIMENT_SPECIES2_NUMBER_OF_PARTICLES", "30")
	t.Setenv("GASPROPS_LOGGING_LEVEL", "debug")
	t.Setenv("GASPROPS_DB", "/tmp/override.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.TimeStep != 0.25 {
		t.Errorf("time step = %g, want 0.25", cfg.Simulation.TimeStep)
	}
	if cfg.Experiment.Species2.NumberOfParticles != 30 {
		t.Errorf("species2 count = %d, want 30", cfg.Experiment.Species2.NumberOfParticles)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
	if p, _ := cfg.StorePath(); p != "/tmp/override.db" {
		t.Errorf("store path = %q", p)
	}
}

func TestEnvOverrides_Invalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GASPROPS_GRID_ROWS", "lots")
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed override")
	}
}

func TestLoad_ReadsHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".gasprops")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("grid:\n  rows: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Grid.Rows != 2 {
		t.Errorf("rows = %d, want 2", cfg.Grid.Rows)
	}
	if p, _ := cfg.StorePath(); p != filepath.Join(dir, "history.db") {
		t.Errorf("store path = %q", p)
	}
}

func TestModelOptions(t *testing.T) {
	cfg := Default()
	cfg.Container.Opening = &OpeningConfig{Left: 100, Right: 900}
	opts := cfg.ModelOptions()

	if opts.Container.Divider == nil || opts.Container.Divider.X != cfg.Container.Width/2 {
		t.Errorf("divider should default to the middle: %+v", opts.Container.Divider)
	}
	if opts.Container.Opening == nil || opts.Container.Opening.Right != 900 {
		t.Errorf("opening not converted: %+v", opts.Container.Opening)
	}
	if _, err := diffusion.New(opts); err != nil {
		t.Errorf("diffusion.New(ModelOptions()) = %v", err)
	}
}
