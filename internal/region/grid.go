// Package region partitions the container interior into a uniform grid of
// cells so that collision detection only compares nearby particles.
package region

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/gasprops/internal/particle"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrCellTooSmall is returned when a cell cannot contain the largest
// particle diameter, which would let collisions go unnoticed.
var ErrCellTooSmall = errors.New("region cell smaller than particle diameter")

// Ref identifies a particle by population and index within that population.
type Ref struct {
	Pop   int
	Index int
}

// Region is one grid cell and the particles whose centers lie inside it.
type Region struct {
	Bounds  r2.Box
	Row     int
	Column  int
	Members []Ref
}

// Summary is the diagnostic view of a region.
type Summary struct {
	Bounds r2.Box `json:"bounds"`
	Row    int    `json:"row"`
	Column int    `json:"column"`
	Count  int    `json:"count"`
}

// Grid is a rows x columns partition of a rectangle. Row 0 is at the
// bottom, column 0 at the left.
type Grid struct {
	rows, columns int
	bounds        r2.Box
	cell          r2.Vec
	regions       []Region
}

// NewGrid creates a grid with the given number of rows and columns over bounds.
func NewGrid(rows, columns int, bounds r2.Box) (*Grid, error) {
	if rows < 1 || columns < 1 {
		return nil, fmt.Errorf("grid must have at least one row and column, got %dx%d", rows, columns)
	}
	g := &Grid{
		rows:    rows,
		columns: columns,
		regions: make([]Region, rows*columns),
	}
	g.SetBounds(bounds)
	return g, nil
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Columns returns the number of columns.
func (g *Grid) Columns() int { return g.columns }

// Bounds returns the rectangle covered by the grid.
func (g *Grid) Bounds() r2.Box { return g.bounds }

// CellSize returns the width and height of one cell.
func (g *Grid) CellSize() r2.Vec { return g.cell }

// Len returns the number of regions.
func (g *Grid) Len() int { return len(g.regions) }

// Region returns the i-th region, numbered row-major from the bottom left.
func (g *Grid) Region(i int) *Region { return &g.regions[i] }

// SetBounds resizes the cells so that the union of all regions is exactly bounds.
func (g *Grid) SetBounds(bounds r2.Box) {
	g.bounds = bounds
	g.cell = r2.Vec{
		X: (bounds.Max.X - bounds.Min.X) / float64(g.columns),
		Y: (bounds.Max.Y - bounds.Min.Y) / float64(g.rows),
	}
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.columns; col++ {
			r := &g.regions[row*g.columns+col]
			r.Row, r.Column = row, col
			r.Bounds = r2.Box{
				Min: r2.Vec{X: bounds.Min.X + float64(col)*g.cell.X, Y: bounds.Min.Y + float64(row)*g.cell.Y},
				Max: r2.Vec{X: bounds.Min.X + float64(col+1)*g.cell.X, Y: bounds.Min.Y + float64(row+1)*g.cell.Y},
			}
			// Pin the outer edges so float error cannot leave gaps.
			if col == g.columns-1 {
				r.Bounds.Max.X = bounds.Max.X
			}
			if row == g.rows-1 {
				r.Bounds.Max.Y = bounds.Max.Y
			}
		}
	}
}

// CheckCellSize verifies that each cell is at least one particle diameter
// wide and tall for particles up to maxRadius.
func (g *Grid) CheckCellSize(maxRadius float64) error {
	d := 2 * maxRadius
	if g.cell.X < d || g.cell.Y < d {
		return fmt.Errorf("%w: cell %.1fx%.1f pm, diameter %.1f pm", ErrCellTooSmall, g.cell.X, g.cell.Y, d)
	}
	return nil
}

// CellIndex returns the index of the region containing p. Points on or
// beyond the grid edge go to the nearest edge cell.
func (g *Grid) CellIndex(p r2.Vec) int {
	col := clamp(int(math.Floor((p.X-g.bounds.Min.X)/g.cell.X)), g.columns)
	row := clamp(int(math.Floor((p.Y-g.bounds.Min.Y)/g.cell.Y)), g.rows)
	return row*g.columns + col
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Rebuild clears every region and assigns each particle of each population
// to exactly one region by the position of its center. Ref.Pop is the
// index of the population in pops.
func (g *Grid) Rebuild(bounds r2.Box, pops ...*particle.Population) {
	if bounds != g.bounds {
		g.SetBounds(bounds)
	}
	for i := range g.regions {
		g.regions[i].Members = g.regions[i].Members[:0]
	}
	for pi, pop := range pops {
		for i, p := range pop.All() {
			idx := g.CellIndex(p.Position)
			g.regions[idx].Members = append(g.regions[idx].Members, Ref{Pop: pi, Index: i})
		}
	}
}

// ForwardNeighbors appends to dst the indices of the right, upper-left, upper
// and upper-right neighbours of region i. Visiting each region's forward
// neighbours covers every adjacent pair of regions exactly once.
func (g *Grid) ForwardNeighbors(i int, dst []int) []int {
	row, col := i/g.columns, i%g.columns
	if col+1 < g.columns {
		dst = append(dst, i+1)
	}
	if row+1 < g.rows {
		up := i + g.columns
		if col > 0 {
			dst = append(dst, up-1)
		}
		dst = append(dst, up)
		if col+1 < g.columns {
			dst = append(dst, up+1)
		}
	}
	return dst
}

// Summaries returns the current partition for diagnostic consumers.
func (g *Grid) Summaries() []Summary {
	out := make([]Summary, len(g.regions))
	for i, r := range g.regions {
		out[i] = Summary{Bounds: r.Bounds, Row: r.Row, Column: r.Column, Count: len(r.Members)}
	}
	return out
}
