package diffusion

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/container"
	"github.com/nvandessel/gasprops/internal/region"
)

// ErrInvalidExperiment is returned for experiment parameters outside their
// ranges or incompatible with the container.
var ErrInvalidExperiment = errors.New("invalid experiment")

// Settings are the parameters of one species.
type Settings struct {
	NumberOfParticles  int     `json:"number_of_particles" yaml:"number_of_particles"`
	Mass               float64 `json:"mass" yaml:"mass"`                               // AMU
	Radius             float64 `json:"radius" yaml:"radius"`                           // pm
	InitialTemperature float64 `json:"initial_temperature" yaml:"initial_temperature"` // K
}

// DefaultSettings returns the defaults for one species.
func DefaultSettings() Settings {
	return Settings{
		NumberOfParticles:  constants.DefaultNumberOfParticles,
		Mass:               constants.DefaultMass,
		Radius:             constants.DefaultRadius,
		InitialTemperature: constants.DefaultInitialTemperature,
	}
}

// Validate checks each parameter against its range.
func (s Settings) Validate() error {
	if s.NumberOfParticles < constants.MinNumberOfParticles || s.NumberOfParticles > constants.MaxNumberOfParticles {
		return fmt.Errorf("%w: number of particles %d not in [%d, %d]", ErrInvalidExperiment,
			s.NumberOfParticles, constants.MinNumberOfParticles, constants.MaxNumberOfParticles)
	}
	if err := checkRange("mass", s.Mass, constants.MinMass, constants.MaxMass); err != nil {
		return err
	}
	if err := checkRange("radius", s.Radius, constants.MinRadius, constants.MaxRadius); err != nil {
		return err
	}
	return checkRange("initial temperature", s.InitialTemperature, constants.MinInitialTemperature, constants.MaxInitialTemperature)
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%w: %s %g not in [%g, %g]", ErrInvalidExperiment, name, v, lo, hi)
	}
	return nil
}

// Experiment holds the parameters of the run that starts when the divider
// is removed. Species 1 starts on the left, species 2 on the right.
type Experiment struct {
	Species1 Settings `json:"species1" yaml:"species1"`
	Species2 Settings `json:"species2" yaml:"species2"`
}

// DefaultExperiment returns an experiment with both species at their defaults.
func DefaultExperiment() Experiment {
	return Experiment{Species1: DefaultSettings(), Species2: DefaultSettings()}
}

// For returns the settings of s, or nil for an unknown species.
func (e *Experiment) For(s constants.Species) *Settings {
	switch s {
	case constants.Species1:
		return &e.Species1
	case constants.Species2:
		return &e.Species2
	}
	return nil
}

// Validate checks both species. When c is non-nil each radius must also fit
// the side its species starts on, and when g is non-nil the grid cells must
// be at least one diameter of the largest particle.
func (e Experiment) Validate(c *container.Container, g *region.Grid) error {
	for _, s := range constants.AllSpecies {
		settings := e.For(s)
		if err := settings.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
		if c != nil {
			if err := checkRadiusFits(settings.Radius, startBounds(c, s)); err != nil {
				return fmt.Errorf("%s: %w", s, err)
			}
		}
	}
	if g != nil {
		if err := g.CheckCellSize(max(e.Species1.Radius, e.Species2.Radius)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidExperiment, err)
		}
	}
	return nil
}
