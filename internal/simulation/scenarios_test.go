package simulation_test

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/nvandessel/gasprops/internal/collision"
	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/container"
	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/simulation"
)

// boxOptions is a 2000x1000 pm container, divider in the middle, with n
// particles of radius 50 on each side. Scenarios step with dt = 0.02 ps so
// that speed*dt stays well below the particle radius.
func boxOptions(n int) diffusion.Options {
	opts := diffusion.DefaultOptions()
	opts.Container = container.Options{
		Bounds:        r2.Box{Max: r2.Vec{X: 2000, Y: 1000}},
		WallThickness: 50,
		Divider:       &container.Divider{X: 1000, Thickness: 50},
	}
	opts.GridRows, opts.GridColumns = 4, 8
	opts.Seed = 42
	for _, s := range []*diffusion.Settings{&opts.Experiment.Species1, &opts.Experiment.Species2} {
		s.NumberOfParticles = n
		s.Radius = 50
	}
	return opts
}

const dt = 0.02

func TestDividerInKeepsSpeciesApart(t *testing.T) {
	r := simulation.NewRunner(t)
	result := r.Run(simulation.Scenario{
		Name:            "divider-in",
		Options:         boxOptions(20),
		TimeStep:        dt,
		Steps:           1500,
		RemoveDividerAt: simulation.Never,
		InsertDividerAt: simulation.Never,
	})

	simulation.AssertNoStepError(t, result)
	simulation.AssertEnergyConserved(t, result, 1e-9)
	simulation.AssertCountsConserved(t, result)
	simulation.AssertContained(t, result)

	for _, f := range result.Frames {
		o := f.Observables
		if o.Counts1.Right != 0 || o.Counts2.Left != 0 {
			t.Fatalf("step %d: a particle crossed the divider: %+v %+v", f.Step, o.Counts1, o.Counts2)
		}
		if o.FlowRate1 != nil || o.FlowRate2 != nil {
			t.Fatalf("step %d: flow rate defined with the divider in", f.Step)
		}
	}
}

func TestDiffusionMixesSpecies(t *testing.T) {
	r := simulation.NewRunner(t)
	result := r.Run(simulation.Scenario{
		Name:            "mixing",
		Options:         boxOptions(20),
		TimeStep:        dt,
		Steps:           2500,
		RemoveDividerAt: 0,
		InsertDividerAt: simulation.Never,
	})

	simulation.AssertNoStepError(t, result)
	simulation.AssertEnergyConserved(t, result, 1e-9)
	simulation.AssertCountsConserved(t, result)
	simulation.AssertContained(t, result)
	simulation.AssertMixed(t, result, 1)
	simulation.AssertCenterOfMassMoves(t, result, constants.Species1, 50)
	simulation.AssertCenterOfMassMoves(t, result, constants.Species2, 50)

	// The flow-rate window is 10 ps, i.e. 500 steps.
	if result.Last().Observables.FlowRate1 == nil {
		t.Error("flow rate should be defined once the window has filled")
	}
}

func TestHotAndColdEqualize(t *testing.T) {
	opts := boxOptions(30)
	opts.Experiment.Species1.InitialTemperature = 500
	opts.Experiment.Species2.InitialTemperature = 50

	r := simulation.NewRunner(t)
	result := r.Run(simulation.Scenario{
		Name:            "hot-cold",
		Options:         opts,
		TimeStep:        dt,
		Steps:           5000,
		RemoveDividerAt: 0,
		InsertDividerAt: simulation.Never,
	})

	simulation.AssertNoStepError(t, result)
	simulation.AssertEnergyConserved(t, result, 1e-9)
	simulation.AssertTemperatureGapShrinks(t, result, 0.5, 2000)
}

func TestReinsertionRecreatesPopulations(t *testing.T) {
	r := simulation.NewRunner(t)
	result := r.Run(simulation.Scenario{
		Name:            "reinsert",
		Options:         boxOptions(10),
		TimeStep:        dt,
		Steps:           1000,
		RemoveDividerAt: 0,
		InsertDividerAt: 500,
	})

	simulation.AssertNoStepError(t, result)
	simulation.AssertEnergyConserved(t, result, 1e-9)

	after := result.Frames[501]
	if !after.Divider {
		t.Fatal("divider should be back after step 500")
	}
	o := after.Observables
	if o.Counts1.Left != 10 || o.Counts1.Right != 0 || o.Counts2.Right != 10 || o.Counts2.Left != 0 {
		t.Errorf("reinsertion should put each species back on its side: %+v %+v", o.Counts1, o.Counts2)
	}
	if o.FlowRate1 != nil {
		t.Error("reinsertion should reset the flow-rate trackers")
	}
}

func TestLidOpeningLetsParticlesEscape(t *testing.T) {
	opts := boxOptions(20)
	opts.Container.Opening = &container.Opening{Left: 500, Right: 1500}

	r := simulation.NewRunner(t)
	result := r.Run(simulation.Scenario{
		Name:            "escape",
		Options:         opts,
		TimeStep:        dt,
		Steps:           2500,
		RemoveDividerAt: simulation.Never,
		InsertDividerAt: simulation.Never,
	})

	simulation.AssertNoStepError(t, result)
	simulation.AssertCountsConserved(t, result)
	simulation.AssertEnergyConserved(t, result, 1e-9)
	if result.Last().Escaped == 0 {
		t.Error("expected particles to escape through a 1000 pm opening")
	}
}

func TestStationaryScenarioAtZeroTimeStep(t *testing.T) {
	opts := boxOptions(0)
	r := simulation.NewRunner(t)
	result := r.Run(simulation.Scenario{
		Name:            "stationary",
		Options:         opts,
		TimeStep:        0,
		Steps:           5,
		RemoveDividerAt: simulation.Never,
		InsertDividerAt: simulation.Never,
		Setup: func(m *diffusion.Model) error {
			for i := range 10 {
				x := 100 + float64(i%5)*180
				y := 300 + float64(i/5)*400
				if _, err := m.PlaceParticle(constants.Species1, r2.Vec{X: x, Y: y}, r2.Vec{}); err != nil {
					return err
				}
			}
			return nil
		},
	})

	simulation.AssertNoStepError(t, result)
	first, last := result.Frames[0], result.Last()
	for i, p := range last.Particles[0] {
		if p != first.Particles[0][i] {
			t.Errorf("particle %d changed: %+v -> %+v", p.ID, first.Particles[0][i], p)
		}
	}
	if c := last.Observables.Counts1; c.Left != 10 || c.Right != 0 {
		t.Errorf("counts = %+v, want left=10 right=0", c)
	}
}

func TestStepErrorEndsRun(t *testing.T) {
	r := simulation.NewRunner(t)
	result := r.Run(simulation.Scenario{
		Name:            "corrupt",
		Options:         boxOptions(0),
		TimeStep:        dt,
		Steps:           10,
		RemoveDividerAt: simulation.Never,
		InsertDividerAt: simulation.Never,
		Setup: func(m *diffusion.Model) error {
			_, err := m.PlaceParticle(constants.Species1, r2.Vec{X: 500, Y: 500}, r2.Vec{X: 10})
			return err
		},
		BeforeStep: func(step int, m *diffusion.Model) error {
			if step == 3 {
				m.Particles(constants.Species1)[0].Velocity.Y = math.Inf(1)
			}
			return nil
		},
	})

	if !errors.Is(result.Err, collision.ErrInvariantViolation) {
		t.Fatalf("Err = %v, want ErrInvariantViolation", result.Err)
	}
	if len(result.Frames) != 4 {
		t.Errorf("got %d frames, want 4 (initial + 3 steps)", len(result.Frames))
	}
}
