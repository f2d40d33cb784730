package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/logging"
)

// field reads and writes one dot-notation key.
type field struct {
	get func(*Config) any
	set func(c *Config, key, value string) error
}

func floatField(p func(*Config) *float64) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, key, v string) error {
			f, err := parseFloat(key, v)
			if err != nil {
				return err
			}
			*p(c) = f
			return nil
		},
	}
}

func intField(p func(*Config) *int) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, key, v string) error {
			n, err := parseInt(key, v)
			if err != nil {
				return err
			}
			*p(c) = n
			return nil
		},
	}
}

func stringField(p func(*Config) *string, valid ...string) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, key, v string) error {
			if len(valid) > 0 && !slices.Contains(valid, v) {
				return fmt.Errorf("invalid value for %s: %s (valid: %s)", key, v, strings.Join(valid, ", "))
			}
			*p(c) = v
			return nil
		},
	}
}

func speciesFields(m map[string]field, s constants.Species) {
	prefix := "experiment." + s.String() + "."
	settings := func(c *Config) *diffusion.Settings { return c.Experiment.For(s) }
	m[prefix+"number_of_particles"] = intField(func(c *Config) *int { return &settings(c).NumberOfParticles })
	m[prefix+"mass"] = floatField(func(c *Config) *float64 { return &settings(c).Mass })
	m[prefix+"radius"] = floatField(func(c *Config) *float64 { return &settings(c).Radius })
	m[prefix+"initial_temperature"] = floatField(func(c *Config) *float64 { return &settings(c).InitialTemperature })
}

var fields = func() map[string]field {
	m := map[string]field{
		"container.width":             floatField(func(c *Config) *float64 { return &c.Container.Width }),
		"container.height":            floatField(func(c *Config) *float64 { return &c.Container.Height }),
		"container.wall_thickness":    floatField(func(c *Config) *float64 { return &c.Container.WallThickness }),
		"container.divider_thickness": floatField(func(c *Config) *float64 { return &c.Container.DividerThickness }),
		"container.divider_x":         floatField(func(c *Config) *float64 { return &c.Container.DividerX }),

		"grid.rows":    intField(func(c *Config) *int { return &c.Grid.Rows }),
		"grid.columns": intField(func(c *Config) *int { return &c.Grid.Columns }),

		"simulation.time_step":                        floatField(func(c *Config) *float64 { return &c.Simulation.TimeStep }),
		"simulation.steps":                            intField(func(c *Config) *int { return &c.Simulation.Steps }),
		"simulation.flow_rate_averaging_time":         floatField(func(c *Config) *float64 { return &c.Simulation.FlowRateAveragingTime }),
		"simulation.collision_counter_averaging_time": floatField(func(c *Config) *float64 { return &c.Simulation.CollisionCounterAveragingTime }),
		"simulation.sample_every":                     intField(func(c *Config) *int { return &c.Simulation.SampleEvery }),
		"simulation.seed": {
			get: func(c *Config) any { return c.Simulation.Seed },
			set: func(c *Config, key, v string) error {
				n, err := strconv.ParseUint(v, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid value for %s: %q is not an unsigned integer", key, v)
				}
				c.Simulation.Seed = n
				return nil
			},
		},

		"logging.level":  stringField(func(c *Config) *string { return &c.Logging.Level }, logging.Levels...),
		"logging.format": stringField(func(c *Config) *string { return &c.Logging.Format }, "text", "json"),

		"store.enabled": {
			get: func(c *Config) any { return c.Store.Enabled },
			set: func(c *Config, _, v string) error { c.Store.Enabled = parseBool(v); return nil },
		},
		"store.path": stringField(func(c *Config) *string { return &c.Store.Path }),
	}
	for _, s := range constants.AllSpecies {
		speciesFields(m, s)
	}
	return m
}()

// Keys returns every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// EnvName returns the environment variable that overrides key, e.g.
// GASPROPS_SIMULATION_TIME_STEP for simulation.time_step.
func EnvName(key string) string {
	return "GASPROPS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Get retrieves a configuration value by dot-notation key.
func (c *Config) Get(key string) (any, bool) {
	f, ok := fields[key]
	if !ok {
		return nil, false
	}
	return f.get(c), true
}

// Set parses value and assigns it to the dot-notation key. It does not
// validate the resulting configuration; call Validate for that.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return f.set(c, key, value)
}
