// Package visualization renders the diffusion container, its region
// partition and its particles for diagnostic overlay.
package visualization

import (
	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/diffusion"
)

// Point is a position in pm.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in pm.
type Rect struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Width returns Max.X - Min.X.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns Max.Y - Min.Y.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Line is a wall segment.
type Line struct {
	From    Point `json:"from"`
	To      Point `json:"to"`
	Divider bool  `json:"divider,omitempty"`
}

// Cell is one region of the partition.
type Cell struct {
	Bounds Rect `json:"bounds"`
	Row    int  `json:"row"`
	Column int  `json:"column"`
	Count  int  `json:"count"`
}

// Disc is one particle.
type Disc struct {
	ID      uint64  `json:"id"`
	Species int     `json:"species"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Radius  float64 `json:"radius"`
}

// Scene is a snapshot of everything drawn for one frame.
type Scene struct {
	Time          float64 `json:"time"`
	Steps         int     `json:"steps"`
	Bounds        Rect    `json:"bounds"`
	WallThickness float64 `json:"wall_thickness"`
	Divider       *Rect   `json:"divider,omitempty"`
	Walls         []Line  `json:"walls"`
	Regions       []Cell  `json:"regions"`
	Particles     []Disc  `json:"particles"`
}

// Snapshot copies the drawable state of m. The result does not alias the
// model and stays valid after further steps.
func Snapshot(m *diffusion.Model) Scene {
	c := m.Container()
	s := Scene{
		Time:          m.Time(),
		Steps:         m.Steps(),
		Bounds:        rect(c.Bounds().Min.X, c.Bounds().Min.Y, c.Bounds().Max.X, c.Bounds().Max.Y),
		WallThickness: c.WallThickness(),
	}
	if c.HasDivider() {
		l, r := c.LeftBounds(), c.RightBounds()
		d := rect(l.Max.X, l.Min.Y, r.Min.X, r.Max.Y)
		s.Divider = &d
	}
	for _, seg := range c.Segments() {
		s.Walls = append(s.Walls, Line{
			From:    Point{X: seg.From.X, Y: seg.From.Y},
			To:      Point{X: seg.To.X, Y: seg.To.Y},
			Divider: seg.Divider,
		})
	}
	for _, r := range m.Regions() {
		s.Regions = append(s.Regions, Cell{
			Bounds: rect(r.Bounds.Min.X, r.Bounds.Min.Y, r.Bounds.Max.X, r.Bounds.Max.Y),
			Row:    r.Row,
			Column: r.Column,
			Count:  r.Count,
		})
	}
	for _, sp := range constants.AllSpecies {
		for _, p := range m.Particles(sp) {
			s.Particles = append(s.Particles, Disc{
				ID:      uint64(p.ID),
				Species: int(sp),
				X:       p.Position.X,
				Y:       p.Position.Y,
				Radius:  p.Radius,
			})
		}
	}
	return s
}

func rect(x0, y0, x1, y1 float64) Rect {
	return Rect{Min: Point{X: x0, Y: y0}, Max: Point{X: x1, Y: y1}}
}
