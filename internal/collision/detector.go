// Package collision detects and resolves particle-particle and
// particle-wall collisions once per simulation step.
package collision

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/gasprops/internal/container"
	"github.com/nvandessel/gasprops/internal/particle"
	"github.com/nvandessel/gasprops/internal/region"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvariantViolation is returned when a particle is found in a state the
// collision response should have made impossible. Continuing would corrupt
// every observable derived from the particles, so the step is aborted.
var ErrInvariantViolation = errors.New("collision invariant violated")

// Stats counts what happened during one detector step.
type Stats struct {
	ParticleCollisions int `json:"particle_collisions"`
	WallCollisions     int `json:"wall_collisions"`    // outer walls
	DividerCollisions  int `json:"divider_collisions"` // divider faces
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.ParticleCollisions += o.ParticleCollisions
	s.WallCollisions += o.WallCollisions
	s.DividerCollisions += o.DividerCollisions
}

// Detector resolves collisions among all particles of its populations,
// which are inspected jointly, and between particles and the container.
type Detector struct {
	container *container.Container
	grid      *region.Grid
	pops      []*particle.Population

	neighbors []int
}

// NewDetector creates a detector. The grid is rebuilt over the container's
// bounds on every step.
func NewDetector(c *container.Container, g *region.Grid, pops ...*particle.Population) *Detector {
	return &Detector{
		container: c,
		grid:      g,
		pops:      pops,
	}
}

// Grid returns the spatial partition used by the last step.
func (d *Detector) Grid() *region.Grid { return d.grid }

func (d *Detector) at(ref region.Ref) *particle.Particle {
	return d.pops[ref.Pop].At(ref.Index)
}

// Step repartitions the particles and resolves every collision found. It
// changes velocities and pushes overlapping particles apart; it does not
// integrate positions.
//
// Particle pairs are examined within each region and between each region
// and its forward neighbours. Pairs are resolved in iteration order; for
// three or more mutually overlapping particles the order changes the exact
// outcome but not the conserved totals.
func (d *Detector) Step() (Stats, error) {
	var stats Stats
	d.grid.Rebuild(d.container.Bounds(), d.pops...)

	for i := 0; i < d.grid.Len(); i++ {
		stats.ParticleCollisions += d.resolveRegion(i)
	}

	for i := 0; i < d.grid.Len(); i++ {
		for _, ref := range d.grid.Region(i).Members {
			walls, dividers := d.collideWithWalls(d.at(ref))
			stats.WallCollisions += walls
			stats.DividerCollisions += dividers
		}
	}

	if err := d.check(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (d *Detector) resolveRegion(i int) int {
	collisions := 0
	members := d.grid.Region(i).Members
	d.neighbors = d.grid.ForwardNeighbors(i, d.neighbors[:0])

	for a := range members {
		pa := d.at(members[a])
		for b := a + 1; b < len(members); b++ {
			if d.resolvePair(pa, d.at(members[b])) {
				collisions++
			}
		}
		for _, n := range d.neighbors {
			for _, ref := range d.grid.Region(n).Members {
				if d.resolvePair(pa, d.at(ref)) {
					collisions++
				}
			}
		}
	}
	return collisions
}

// resolvePair ignores particles on opposite sides of an inserted divider.
// Sides come from the positions before the last move, so a particle that
// overshot the divider still only meets its own side.
func (d *Detector) resolvePair(a, b *particle.Particle) bool {
	if d.container.HasDivider() {
		x := d.container.ReferenceX()
		if (a.PreviousPosition.X < x) != (b.PreviousPosition.X < x) {
			return false
		}
	}
	return Resolve(a, b)
}

// Resolve handles a possible collision between two particles. If their
// discs overlap it performs a 2D elastic collision along the line of
// centers (when they are approaching) and moves them apart so they only
// touch, splitting the correction in inverse proportion to mass. It
// reports whether the particles overlapped.
func Resolve(a, b *particle.Particle) bool {
	delta := r2.Sub(b.Position, a.Position)
	dist := r2.Norm(delta)
	contact := a.Radius + b.Radius
	if dist >= contact {
		return false
	}

	// Unit normal from a to b. Coincident centers get an arbitrary normal.
	n := r2.Vec{X: 1}
	if dist > 0 {
		n = r2.Vec{X: delta.X / dist, Y: delta.Y / dist}
	}

	total := a.Mass + b.Mass
	if closing := r2.Dot(r2.Sub(a.Velocity, b.Velocity), n); closing > 0 {
		a.Velocity = r2.Sub(a.Velocity, r2.Scale(2*b.Mass/total*closing, n))
		b.Velocity = r2.Add(b.Velocity, r2.Scale(2*a.Mass/total*closing, n))
	}

	overlap := contact - dist
	a.Position = r2.Sub(a.Position, r2.Scale(overlap*b.Mass/total, n))
	b.Position = r2.Add(b.Position, r2.Scale(overlap*a.Mass/total, n))
	return true
}

// collideWithWalls reflects p off every wall it touches and moves it back
// to be tangent to that wall. A particle exactly touching a wall while
// moving into it is reflected. Particles that have risen through the
// opening are left alone.
func (d *Detector) collideWithWalls(p *particle.Particle) (walls, dividers int) {
	if _, ok := d.container.Opening(); ok && p.Position.Y > d.container.Bounds().Max.Y {
		return 0, 0
	}
	for _, w := range d.container.WallsFor(p.PreviousPosition, p.Position) {
		hit := false
		switch w.Side {
		case container.SideLeft:
			if p.Left() <= w.At {
				p.Position.X = w.At + p.Radius
				if p.Velocity.X < 0 {
					p.Velocity.X = -p.Velocity.X
					hit = true
				}
			}
		case container.SideRight:
			if p.Right() >= w.At {
				p.Position.X = w.At - p.Radius
				if p.Velocity.X > 0 {
					p.Velocity.X = -p.Velocity.X
					hit = true
				}
			}
		case container.SideBottom:
			if p.Bottom() <= w.At {
				p.Position.Y = w.At + p.Radius
				if p.Velocity.Y < 0 {
					p.Velocity.Y = -p.Velocity.Y
					hit = true
				}
			}
		case container.SideTop:
			if p.Top() >= w.At {
				p.Position.Y = w.At - p.Radius
				if p.Velocity.Y > 0 {
					p.Velocity.Y = -p.Velocity.Y
					hit = true
				}
			}
		}
		if hit {
			if w.Divider {
				dividers++
			} else {
				walls++
			}
		}
	}
	return walls, dividers
}

// check verifies that every particle has a finite state and a center inside
// the bounds that confine it.
func (d *Detector) check() error {
	_, hasOpening := d.container.Opening()
	for _, pop := range d.pops {
		for i := 0; i < pop.Len(); i++ {
			p := pop.At(i)
			if !finite(p.Velocity) {
				return fmt.Errorf("%w: %s particle %d has velocity %v", ErrInvariantViolation, pop.Species(), p.ID, p.Velocity)
			}
			b := d.container.BoundsFor(p.PreviousPosition)
			if hasOpening && p.Position.Y > b.Max.Y {
				continue
			}
			if !container.Contains(b, p.Position) {
				return fmt.Errorf("%w: %s particle %d at %v is outside %v", ErrInvariantViolation, pop.Species(), p.ID, p.Position, b)
			}
		}
	}
	return nil
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}
