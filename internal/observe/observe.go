// Package observe derives macroscopic quantities from particle state:
// center of mass, left/right counts and kinetic-theory temperatures.
//
// Quantities that are meaningless for an empty set of particles are
// reported as nil rather than as an error.
package observe

import (
	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/container"
	"github.com/nvandessel/gasprops/internal/particle"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

// Counts is the number of particles of one population on each side.
type Counts struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Total returns Left + Right.
func (c Counts) Total() int { return c.Left + c.Right }

// Observables is the set of values recomputed after every step.
type Observables struct {
	CenterXOfMass1 *float64 `json:"center_x_of_mass_1"` // pm
	CenterXOfMass2 *float64 `json:"center_x_of_mass_2"` // pm

	Counts1 Counts `json:"counts_1"`
	Counts2 Counts `json:"counts_2"`

	LeftTemperature  *float64 `json:"left_temperature"`  // K
	RightTemperature *float64 `json:"right_temperature"` // K

	// Flow rates are filled in by the caller, which owns the trackers.
	FlowRate1 *float64 `json:"flow_rate_1"` // particles/ps
	FlowRate2 *float64 `json:"flow_rate_2"` // particles/ps
}

// CenterXOfMass returns the mean x position of pop, or nil when it is empty.
func CenterXOfMass(pop *particle.Population) *float64 {
	if pop.Len() == 0 {
		return nil
	}
	xs := make([]float64, pop.Len())
	for i, p := range pop.All() {
		xs[i] = p.Position.X
	}
	m := stat.Mean(xs, nil)
	return &m
}

// Sider decides which side of the container a particle belongs to.
// *container.Container satisfies it.
type Sider interface {
	IsLeft(from, p r2.Vec) bool
}

var _ Sider = (*container.Container)(nil)

// LeftRightCounts counts the particles of pop that s places on the left,
// and the rest.
func LeftRightCounts(pop *particle.Population, s Sider) Counts {
	var c Counts
	for _, p := range pop.All() {
		if s.IsLeft(p.PreviousPosition, p.Position) {
			c.Left++
		} else {
			c.Right++
		}
	}
	return c
}

// AverageTemperature converts a total kinetic energy shared by n particles
// to a temperature using T = (2/3)·meanKE/k. It is nil when n is zero.
func AverageTemperature(totalKE float64, n int) *float64 {
	if n <= 0 {
		return nil
	}
	t := (2.0 / 3.0) * (totalKE / float64(n)) / constants.Boltzmann
	return &t
}

// sideEnergies returns the kinetic energies of every particle in pops
// split by side.
func sideEnergies(s Sider, pops ...*particle.Population) (l, r []float64) {
	for _, pop := range pops {
		for i := 0; i < pop.Len(); i++ {
			p := pop.At(i)
			if s.IsLeft(p.PreviousPosition, p.Position) {
				l = append(l, p.KineticEnergy())
			} else {
				r = append(r, p.KineticEnergy())
			}
		}
	}
	return l, r
}

// Compute derives every observable. Counts are taken first and supply the
// denominators of the pooled per-side temperatures.
func Compute(s Sider, pop1, pop2 *particle.Population) Observables {
	o := Observables{
		CenterXOfMass1: CenterXOfMass(pop1),
		CenterXOfMass2: CenterXOfMass(pop2),
		Counts1:        LeftRightCounts(pop1, s),
		Counts2:        LeftRightCounts(pop2, s),
	}
	l, r := sideEnergies(s, pop1, pop2)
	o.LeftTemperature = AverageTemperature(floats.Sum(l), o.Counts1.Left+o.Counts2.Left)
	o.RightTemperature = AverageTemperature(floats.Sum(r), o.Counts1.Right+o.Counts2.Right)
	return o
}
