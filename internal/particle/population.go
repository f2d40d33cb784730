package particle

import (
	"fmt"
	"math"

	"github.com/nvandessel/gasprops/internal/constants"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"
)

// Rand is the random source used to place new particles.
// *rand.Rand from golang.org/x/exp/rand satisfies it.
type Rand interface {
	Float64() float64
}

// NewRand returns a deterministic random source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Spec describes the particles created by Population.Add.
type Spec struct {
	Mass        float64 // AMU
	Radius      float64 // pm
	Temperature float64 // K, sets the initial speed
}

// Population is a contiguous store of particles of one species.
// Pointers returned by At are valid until the next Add, Remove or Clear.
type Population struct {
	species   constants.Species
	particles []Particle
	nextID    ID
}

// NewPopulation creates an empty population for the given species.
func NewPopulation(species constants.Species) *Population {
	return &Population{species: species, nextID: 1}
}

// Species returns the species tag shared by every particle in the population.
func (p *Population) Species() constants.Species { return p.species }

// Len returns the number of live particles.
func (p *Population) Len() int { return len(p.particles) }

// At returns the i-th particle.
func (p *Population) At(i int) *Particle { return &p.particles[i] }

// All returns the live particles. Callers must treat the slice as read-only.
func (p *Population) All() []Particle { return p.particles }

// Add appends n particles placed uniformly at random so that each disc lies
// inside bounds, moving in a random direction at the rms speed for
// spec.Temperature.
func (p *Population) Add(n int, bounds r2.Box, spec Spec, rng Rand) error {
	if n < 0 {
		return fmt.Errorf("cannot add %d particles", n)
	}
	width := bounds.Max.X - bounds.Min.X - 2*spec.Radius
	height := bounds.Max.Y - bounds.Min.Y - 2*spec.Radius
	if width <= 0 || height <= 0 {
		return fmt.Errorf("radius %g pm does not fit in bounds %v", spec.Radius, bounds)
	}

	speed := SpeedForTemperature(spec.Temperature, spec.Mass)
	for i := 0; i < n; i++ {
		part := Particle{
			ID:      p.nextID,
			Species: p.species,
			Position: r2.Vec{
				X: bounds.Min.X + spec.Radius + rng.Float64()*width,
				Y: bounds.Min.Y + spec.Radius + rng.Float64()*height,
			},
			Mass:   spec.Mass,
			Radius: spec.Radius,
		}
		part.PreviousPosition = part.Position
		part.SetVelocityPolar(speed, rng.Float64()*2*math.Pi)
		p.nextID++
		p.particles = append(p.particles, part)
	}
	return nil
}

// Place appends one particle with an explicit state and returns its handle.
func (p *Population) Place(position, velocity r2.Vec, mass, radius float64) ID {
	id := p.nextID
	p.nextID++
	p.particles = append(p.particles, Particle{
		ID:               id,
		Species:          p.species,
		Position:         position,
		PreviousPosition: position,
		Velocity:         velocity,
		Mass:             mass,
		Radius:           radius,
	})
	return id
}

// Remove destroys the n most recently added particles.
func (p *Population) Remove(n int) error {
	if n < 0 || n > len(p.particles) {
		return fmt.Errorf("cannot remove %d of %d particles", n, len(p.particles))
	}
	p.particles = p.particles[:len(p.particles)-n]
	return nil
}

// RemoveIf destroys every particle for which drop returns true and reports
// how many were removed. Order of the survivors is preserved.
func (p *Population) RemoveIf(drop func(*Particle) bool) int {
	kept := p.particles[:0]
	for i := range p.particles {
		if !drop(&p.particles[i]) {
			kept = append(kept, p.particles[i])
		}
	}
	removed := len(p.particles) - len(kept)
	p.particles = kept
	return removed
}

// Clear destroys every particle.
func (p *Population) Clear() {
	p.particles = p.particles[:0]
}

// Advance moves every particle by velocity*dt, remembering where it was.
func (p *Population) Advance(dt float64) {
	for i := range p.particles {
		part := &p.particles[i]
		part.PreviousPosition = part.Position
		part.Position = r2.Add(part.Position, r2.Scale(dt, part.Velocity))
	}
}

// SetMass changes the mass of every particle in place.
func (p *Population) SetMass(mass float64) {
	for i := range p.particles {
		p.particles[i].Mass = mass
	}
}

// SetRadius changes the radius of every particle in place.
func (p *Population) SetRadius(radius float64) {
	for i := range p.particles {
		p.particles[i].Radius = radius
	}
}

// SetSpeedForTemperature rescales every particle to the rms speed for t,
// keeping each direction of motion.
func (p *Population) SetSpeedForTemperature(t float64) {
	for i := range p.particles {
		part := &p.particles[i]
		part.SetSpeed(SpeedForTemperature(t, part.Mass))
	}
}

// ConstrainTo moves any particle that sticks out of bounds back inside it.
// The constrained position also becomes the previous one.
func (p *Population) ConstrainTo(bounds r2.Box) {
	for i := range p.particles {
		part := &p.particles[i]
		if part.Left() < bounds.Min.X {
			part.Position.X = bounds.Min.X + part.Radius
		} else if part.Right() > bounds.Max.X {
			part.Position.X = bounds.Max.X - part.Radius
		}
		if part.Bottom() < bounds.Min.Y {
			part.Position.Y = bounds.Min.Y + part.Radius
		} else if part.Top() > bounds.Max.Y {
			part.Position.Y = bounds.Max.Y - part.Radius
		}
		part.PreviousPosition = part.Position
	}
}

// TotalKineticEnergy sums the kinetic energy of every particle.
func (p *Population) TotalKineticEnergy() float64 {
	total := 0.0
	for i := range p.particles {
		total += p.particles[i].KineticEnergy()
	}
	return total
}

// TotalMomentum sums m*v over every particle.
func (p *Population) TotalMomentum() r2.Vec {
	var total r2.Vec
	for i := range p.particles {
		total = r2.Add(total, p.particles[i].Momentum())
	}
	return total
}
