package simulation

import (
	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/observe"
	"github.com/nvandessel/gasprops/internal/particle"
	"github.com/nvandessel/gasprops/internal/store"
)

// Never disables a step-indexed hook.
const Never = -1

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name     string
	Options  diffusion.Options
	TimeStep float64
	Steps    int

	// RemoveDividerAt is the step index before which the divider is taken
	// out, or Never.
	RemoveDividerAt int

	// InsertDividerAt is the step index before which the divider is put
	// back, or Never.
	InsertDividerAt int

	// SampleEvery records a store sample every n steps. Zero records none.
	SampleEvery int

	// Setup, when non-nil, is called once on the fresh model, e.g. to
	// place particles explicitly.
	Setup func(m *diffusion.Model) error

	// BeforeStep, when non-nil, is called before each step.
	BeforeStep func(step int, m *diffusion.Model) error
}

// Frame captures the model after one step. Frame 0 is the state before
// the first step.
type Frame struct {
	Step          int
	Time          float64
	Divider       bool
	KineticEnergy float64
	Escaped       int
	Observables   observe.Observables
	Particles     [2][]particle.Particle
}

// Count returns the live particles of species s.
func (f Frame) Count(s constants.Species) int { return len(f.Particles[int(s)-1]) }

// SimulationResult captures all frames and the recorded run.
type SimulationResult struct {
	Scenario Scenario
	Frames   []Frame
	Model    *diffusion.Model
	RunID    int64
	Samples  []store.Sample
	Err      error // step error that ended the run early, if any
}

// Last returns the final frame.
func (r SimulationResult) Last() Frame { return r.Frames[len(r.Frames)-1] }
