// Package container models the rectangular box that holds the gas, with an
// optional removable divider and an optional opening in the top wall.
package container

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidGeometry is returned for container configurations that cannot
// hold particles: empty bounds, a divider outside the walls, or an opening
// that is inverted or outside the top wall.
var ErrInvalidGeometry = errors.New("invalid container geometry")

// Divider is a vertical internal wall centered on X.
type Divider struct {
	X         float64 // pm
	Thickness float64 // pm
}

// Opening is a gap in the top wall between Left and Right, in pm.
type Opening struct {
	Left  float64
	Right float64
}

// Width returns Right - Left.
func (o Opening) Width() float64 { return o.Right - o.Left }

// Options configures a Container.
type Options struct {
	// Bounds is the interior of the container. Particle discs stay inside it.
	Bounds r2.Box

	// WallThickness is drawn outside Bounds and does not affect collisions.
	WallThickness float64

	// Divider, when non-nil, splits the interior into left and right halves.
	Divider *Divider

	// Opening, when non-nil, is a gap in the top wall that particles can escape through.
	Opening *Opening
}

// Container is a single container type. Variants (with divider, with lid
// opening) are expressed by the optional descriptors rather than by
// separate types.
type Container struct {
	bounds         r2.Box
	wallThickness  float64
	divider        *Divider
	dividerPresent bool
	opening        *Opening

	left, right r2.Box
}

// New validates opts and returns a container. A configured divider starts out present.
func New(opts Options) (*Container, error) {
	c := &Container{
		bounds:         opts.Bounds,
		wallThickness:  opts.WallThickness,
		dividerPresent: opts.Divider != nil,
	}
	if opts.Divider != nil {
		d := *opts.Divider
		c.divider = &d
	}
	if opts.Opening != nil {
		o := *opts.Opening
		c.opening = &o
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.updateSubBounds()
	return c, nil
}

// Validate checks the container geometry.
func (c *Container) Validate() error {
	b := c.bounds
	if !(b.Max.X > b.Min.X) || !(b.Max.Y > b.Min.Y) {
		return fmt.Errorf("%w: bounds %v are empty", ErrInvalidGeometry, b)
	}
	if c.wallThickness < 0 {
		return fmt.Errorf("%w: wall thickness %g is negative", ErrInvalidGeometry, c.wallThickness)
	}
	if d := c.divider; d != nil {
		if d.Thickness < 0 {
			return fmt.Errorf("%w: divider thickness %g is negative", ErrInvalidGeometry, d.Thickness)
		}
		if !(d.X-d.Thickness/2 > b.Min.X && d.X+d.Thickness/2 < b.Max.X) {
			return fmt.Errorf("%w: divider at x=%g must lie strictly between the walls [%g, %g]",
				ErrInvalidGeometry, d.X, b.Min.X, b.Max.X)
		}
	}
	if o := c.opening; o != nil {
		if err := c.checkOpening(*o); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) checkOpening(o Opening) error {
	if o.Left > o.Right {
		return fmt.Errorf("%w: opening left %g must be <= opening right %g", ErrInvalidGeometry, o.Left, o.Right)
	}
	if o.Left < c.bounds.Min.X || o.Right > c.bounds.Max.X {
		return fmt.Errorf("%w: opening [%g, %g] is outside the top wall [%g, %g]",
			ErrInvalidGeometry, o.Left, o.Right, c.bounds.Min.X, c.bounds.Max.X)
	}
	return nil
}

// updateSubBounds recomputes the left and right bounds. With the divider in,
// each side stops at the divider's faces. Without it, the sides meet at the
// divider's x (or the midline when no divider is configured).
func (c *Container) updateSubBounds() {
	b := c.bounds
	mid := (b.Min.X + b.Max.X) / 2
	leftMax, rightMin := mid, mid
	if d := c.divider; d != nil {
		leftMax, rightMin = d.X, d.X
		if c.dividerPresent {
			leftMax = d.X - d.Thickness/2
			rightMin = d.X + d.Thickness/2
		}
	}
	c.left = r2.Box{Min: b.Min, Max: r2.Vec{X: leftMax, Y: b.Max.Y}}
	c.right = r2.Box{Min: r2.Vec{X: rightMin, Y: b.Min.Y}, Max: b.Max}
}

// Bounds returns the interior of the container.
func (c *Container) Bounds() r2.Box { return c.bounds }

// WallThickness returns the thickness of the outer walls.
func (c *Container) WallThickness() float64 { return c.wallThickness }

// Width returns the interior width.
func (c *Container) Width() float64 { return c.bounds.Max.X - c.bounds.Min.X }

// Height returns the interior height.
func (c *Container) Height() float64 { return c.bounds.Max.Y - c.bounds.Min.Y }

// Divider returns the divider geometry and whether one is configured.
func (c *Container) Divider() (Divider, bool) {
	if c.divider == nil {
		return Divider{}, false
	}
	return *c.divider, true
}

// ReferenceX is the x coordinate that separates left from right: the
// divider's x when configured, else the midline.
func (c *Container) ReferenceX() float64 {
	if c.divider != nil {
		return c.divider.X
	}
	return (c.bounds.Min.X + c.bounds.Max.X) / 2
}

// HasDivider reports whether a divider is configured and currently in place.
func (c *Container) HasDivider() bool {
	return c.divider != nil && c.dividerPresent
}

// SetDividerPresent inserts or removes the divider and reports whether the
// state changed. It is a no-op for containers without a divider.
func (c *Container) SetDividerPresent(present bool) bool {
	if c.divider == nil || c.dividerPresent == present {
		return false
	}
	c.dividerPresent = present
	c.updateSubBounds()
	return true
}

// LeftBounds returns the interior left of the divider.
func (c *Container) LeftBounds() r2.Box { return c.left }

// RightBounds returns the interior right of the divider.
func (c *Container) RightBounds() r2.Box { return c.right }

// IsLeft reports whether a particle now centered at p, and centered at
// from before its last move, belongs to the left side. With the divider in
// place the side is the one from lies on, since the particle cannot have
// crossed. Otherwise it is decided by p against the reference x, with a
// center on the line counted as left.
func (c *Container) IsLeft(from, p r2.Vec) bool {
	if c.HasDivider() {
		return from.X < c.divider.X
	}
	return p.X <= c.ReferenceX()
}

// BoundsFor returns the bounds that confine a particle that was centered at
// from before its last move. Only from.X matters, and only while the
// divider is in place.
func (c *Container) BoundsFor(from r2.Vec) r2.Box {
	if !c.HasDivider() {
		return c.bounds
	}
	if from.X < c.divider.X {
		return c.left
	}
	return c.right
}

// Opening returns the top-wall opening and whether there is one.
func (c *Container) Opening() (Opening, bool) {
	if c.opening == nil {
		return Opening{}, false
	}
	return *c.opening, true
}

// SetOpening sets or moves the opening in the top wall.
func (c *Container) SetOpening(o Opening) error {
	if err := c.checkOpening(o); err != nil {
		return err
	}
	c.opening = &o
	return nil
}

// CloseOpening removes the opening, making the top wall solid.
func (c *Container) CloseOpening() { c.opening = nil }

// InOpening reports whether x is within the opening's x range.
func (c *Container) InOpening(x float64) bool {
	return c.opening != nil && x >= c.opening.Left && x <= c.opening.Right
}

// Escaped reports whether a disc at p with radius r has left through the opening.
func (c *Container) Escaped(p r2.Vec, r float64) bool {
	return c.opening != nil && p.Y-r > c.bounds.Max.Y+c.wallThickness
}

// Reset puts a configured divider back in place.
func (c *Container) Reset() {
	c.SetDividerPresent(c.divider != nil)
}

// Contains reports whether p is a finite point inside b.
func Contains(b r2.Box, p r2.Vec) bool {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return false
	}
	return b.Min.X <= p.X && p.X <= b.Max.X && b.Min.Y <= p.Y && p.Y <= b.Max.Y
}
