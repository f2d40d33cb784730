package simulation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/nvandessel/gasprops/internal/constants"
)

// AssertNoStepError asserts that every step of the scenario completed.
func AssertNoStepError(t *testing.T, result SimulationResult) {
	t.Helper()
	if result.Err != nil {
		t.Errorf("AssertNoStepError: %s stopped after %d steps: %v", result.Scenario.Name, len(result.Frames)-1, result.Err)
	}
}

// AssertEnergyConserved asserts that total kinetic energy stays within a
// relative tolerance of its initial value while no particle is created,
// destroyed or re-spawned. Frames following a divider insertion are
// compared against the first frame after it.
func AssertEnergyConserved(t *testing.T, result SimulationResult, relTol float64) {
	t.Helper()
	ref := result.Frames[0]
	for i, f := range result.Frames[1:] {
		prev := result.Frames[i]
		if f.Divider && !prev.Divider || f.Escaped != prev.Escaped {
			ref = f
			continue
		}
		if !scalar.EqualWithinRel(f.KineticEnergy, ref.KineticEnergy, relTol) {
			t.Errorf("AssertEnergyConserved: step %d: kinetic energy %.9g drifted from %.9g (tol %g)",
				f.Step, f.KineticEnergy, ref.KineticEnergy, relTol)
			return
		}
	}
}

// AssertCountsConserved asserts that live plus escaped particles never change.
func AssertCountsConserved(t *testing.T, result SimulationResult) {
	t.Helper()
	total := func(f Frame) int { return len(f.Particles[0]) + len(f.Particles[1]) + f.Escaped }
	want := total(result.Frames[0])
	for _, f := range result.Frames {
		if got := total(f); got != want {
			t.Errorf("AssertCountsConserved: step %d: %d particles accounted for, want %d", f.Step, got, want)
			return
		}
	}
}

// AssertContained asserts that every particle center lies inside the
// container interior. Frames are taken after integration, so a center may
// overshoot a wall by up to speed*dt until the next collision pass; slack
// widens the bounds by that much. Particles above a lid opening are
// skipped.
func AssertContained(t *testing.T, result SimulationResult) {
	t.Helper()
	b := result.Model.Container().Bounds()
	dt := result.Scenario.TimeStep
	_, hasOpening := result.Model.Container().Opening()
	for _, f := range result.Frames {
		for _, pop := range f.Particles {
			for _, p := range pop {
				slack := p.Speed() * dt
				x, y := p.Position.X, p.Position.Y
				if hasOpening && y > b.Max.Y {
					continue // on its way out through the lid
				}
				if x < b.Min.X-slack || x > b.Max.X+slack || y < b.Min.Y-slack || y > b.Max.Y+slack {
					t.Errorf("AssertContained: step %d: particle %d at (%.3f, %.3f) is outside %v", f.Step, p.ID, x, y, b)
					return
				}
			}
		}
	}
}

// AssertMixed asserts that by the final frame at least min particles of
// each species have crossed to the side they did not start on.
func AssertMixed(t *testing.T, result SimulationResult, min int) {
	t.Helper()
	last := result.Last().Observables
	if last.Counts1.Right < min {
		t.Errorf("AssertMixed: only %d of species 1 on the right (need %d)", last.Counts1.Right, min)
	}
	if last.Counts2.Left < min {
		t.Errorf("AssertMixed: only %d of species 2 on the left (need %d)", last.Counts2.Left, min)
	}
}

// AssertTemperatureGapShrinks asserts that the mean left/right temperature
// gap over the last window frames is at most fraction of the initial gap.
func AssertTemperatureGapShrinks(t *testing.T, result SimulationResult, fraction float64, window int) {
	t.Helper()
	gap := func(f Frame) (float64, bool) {
		l, r := f.Observables.LeftTemperature, f.Observables.RightTemperature
		if l == nil || r == nil {
			return 0, false
		}
		return math.Abs(*l - *r), true
	}

	initial, ok := gap(result.Frames[0])
	if !ok {
		t.Fatal("AssertTemperatureGapShrinks: initial temperatures undefined")
	}
	start := max(len(result.Frames)-window, 0)
	var gaps []float64
	for _, f := range result.Frames[start:] {
		if g, ok := gap(f); ok {
			gaps = append(gaps, g)
		}
	}
	if len(gaps) == 0 {
		t.Fatal("AssertTemperatureGapShrinks: no frames with both temperatures defined")
	}
	mean := floats.Sum(gaps) / float64(len(gaps))
	if mean > fraction*initial {
		t.Errorf("AssertTemperatureGapShrinks: mean gap %.2f K over the last %d frames, want <= %.2f K (initial %.2f K)",
			mean, len(gaps), fraction*initial, initial)
	}
}

// AssertCenterOfMassMoves asserts that the center of mass of s moves by
// at least minShift pm toward the container middle between the first and
// last frame.
func AssertCenterOfMassMoves(t *testing.T, result SimulationResult, s constants.Species, minShift float64) {
	t.Helper()
	com := func(f Frame) *float64 {
		if s == constants.Species1 {
			return f.Observables.CenterXOfMass1
		}
		return f.Observables.CenterXOfMass2
	}
	first, last := com(result.Frames[0]), com(result.Last())
	if first == nil || last == nil {
		t.Fatalf("AssertCenterOfMassMoves: %s center of mass undefined", s)
	}
	shift := *last - *first
	if s == constants.Species2 {
		shift = -shift
	}
	if shift < minShift {
		t.Errorf("AssertCenterOfMassMoves: %s moved %.1f pm toward the middle, want >= %.1f", s, shift, minShift)
	}
}
