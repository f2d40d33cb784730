package container

import "gonum.org/v1/gonum/spatial/r2"

// Side identifies which face of a confining box a wall is.
type Side int

const (
	SideLeft Side = iota
	SideRight
	SideBottom
	SideTop
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	case SideBottom:
		return "bottom"
	case SideTop:
		return "top"
	}
	return "unknown"
}

// Wall is one face a particle can bounce off. At is the coordinate of the
// face (x for left/right, y for bottom/top).
type Wall struct {
	Side    Side
	At      float64
	Divider bool // true for the faces of the divider
}

// WallsFor returns the walls that confine a particle centered at p that was
// centered at from before its last move. from picks the side of the divider;
// the top wall is omitted when p is below the opening.
func (c *Container) WallsFor(from, p r2.Vec) []Wall {
	b := c.BoundsFor(from)
	walls := make([]Wall, 0, 4)
	walls = append(walls,
		Wall{Side: SideLeft, At: b.Min.X, Divider: c.HasDivider() && b.Min.X != c.bounds.Min.X},
		Wall{Side: SideRight, At: b.Max.X, Divider: c.HasDivider() && b.Max.X != c.bounds.Max.X},
		Wall{Side: SideBottom, At: b.Min.Y},
	)
	if !c.InOpening(p.X) {
		walls = append(walls, Wall{Side: SideTop, At: b.Max.Y})
	}
	return walls
}

// Segment is a drawable wall line.
type Segment struct {
	From, To r2.Vec
	Divider  bool
}

// Segments returns the inner faces of the container as line segments, with
// the top wall split around the opening and both divider faces when present.
func (c *Container) Segments() []Segment {
	b := c.bounds
	topLeft := r2.Vec{X: b.Min.X, Y: b.Max.Y}
	bottomRight := r2.Vec{X: b.Max.X, Y: b.Min.Y}

	segs := []Segment{
		{From: b.Min, To: topLeft},
		{From: bottomRight, To: b.Max},
		{From: b.Min, To: bottomRight},
	}
	if o, ok := c.Opening(); ok {
		if o.Left > b.Min.X {
			segs = append(segs, Segment{From: topLeft, To: r2.Vec{X: o.Left, Y: b.Max.Y}})
		}
		if o.Right < b.Max.X {
			segs = append(segs, Segment{From: r2.Vec{X: o.Right, Y: b.Max.Y}, To: b.Max})
		}
	} else {
		segs = append(segs, Segment{From: topLeft, To: b.Max})
	}
	if c.HasDivider() {
		segs = append(segs,
			Segment{From: r2.Vec{X: c.left.Max.X, Y: b.Min.Y}, To: r2.Vec{X: c.left.Max.X, Y: b.Max.Y}, Divider: true},
			Segment{From: r2.Vec{X: c.right.Min.X, Y: b.Min.Y}, To: r2.Vec{X: c.right.Min.X, Y: b.Max.Y}, Divider: true},
		)
	}
	return segs
}
