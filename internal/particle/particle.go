// Package particle holds the mutable physical state of gas molecules and the
// per-species stores they live in.
package particle

import (
	"math"

	"github.com/nvandessel/gasprops/internal/constants"
	"gonum.org/v1/gonum/spatial/r2"
)

// ID is a stable handle for a particle. IDs are unique within a Population
// and are never reused, so a handle outlives reordering of the store.
type ID uint64

// Particle is one gas molecule. Position is the center of the disc, in pm.
// The model's y axis points up.
//
// PreviousPosition is the center before the last Advance. While a divider
// is in place it fixes the side a particle belongs to, however far the
// integration step carried it.
type Particle struct {
	ID               ID
	Species          constants.Species
	Position         r2.Vec // pm
	PreviousPosition r2.Vec // pm
	Velocity         r2.Vec // pm/ps
	Mass             float64 // AMU
	Radius           float64 // pm
}

// KineticEnergy returns 1/2 m |v|^2, in AMU*pm^2/ps^2.
func (p *Particle) KineticEnergy() float64 {
	return 0.5 * p.Mass * r2.Norm2(p.Velocity)
}

// Momentum returns m*v.
func (p *Particle) Momentum() r2.Vec {
	return r2.Scale(p.Mass, p.Velocity)
}

// Speed returns |v|.
func (p *Particle) Speed() float64 {
	return r2.Norm(p.Velocity)
}

func (p *Particle) Left() float64   { return p.Position.X - p.Radius }
func (p *Particle) Right() float64  { return p.Position.X + p.Radius }
func (p *Particle) Bottom() float64 { return p.Position.Y - p.Radius }
func (p *Particle) Top() float64    { return p.Position.Y + p.Radius }

// SetVelocityPolar sets the velocity from a magnitude and an angle in radians.
func (p *Particle) SetVelocityPolar(magnitude, angle float64) {
	p.Velocity = r2.Vec{
		X: magnitude * math.Cos(angle),
		Y: magnitude * math.Sin(angle),
	}
}

// SetSpeed rescales the velocity to the given magnitude, keeping its
// direction. A particle at rest is given the speed along +x.
func (p *Particle) SetSpeed(speed float64) {
	current := r2.Norm(p.Velocity)
	if current == 0 {
		p.Velocity = r2.Vec{X: speed}
		return
	}
	p.Velocity = r2.Scale(speed/current, p.Velocity)
}

// ContainedIn reports whether the whole disc lies inside b.
func (p *Particle) ContainedIn(b r2.Box) bool {
	return p.Left() >= b.Min.X && p.Right() <= b.Max.X &&
		p.Bottom() >= b.Min.Y && p.Top() <= b.Max.Y
}

// SpeedForTemperature returns |v| = sqrt(3kT/m), the rms speed of a
// molecule of the given mass at temperature t.
func SpeedForTemperature(t, mass float64) float64 {
	return math.Sqrt(3 * constants.Boltzmann * t / mass)
}
