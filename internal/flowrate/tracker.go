// Package flowrate estimates the net rate at which particles cross the
// divider's x coordinate, averaged over a trailing window.
package flowrate

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/gasprops/internal/particle"
)

// ErrInvalidAveragingTime is returned for non-positive averaging windows.
var ErrInvalidAveragingTime = errors.New("invalid averaging time")

type sample struct {
	dt          float64
	leftToRight int
	rightToLeft int
}

// Tracker counts crossings of one population over a vertical reference
// line. A particle moving from the left of the line to the right counts
// +1; the reverse counts -1.
type Tracker struct {
	x             float64
	averagingTime float64

	// side of the line each particle was on at the previous step; true is left
	sides, next map[particle.ID]bool

	samples     []sample
	elapsed     float64
	leftToRight int
	rightToLeft int
}

// New creates a tracker for the line at x.
func New(x, averagingTime float64) (*Tracker, error) {
	if !(averagingTime > 0) || math.IsInf(averagingTime, 0) {
		return nil, fmt.Errorf("%w: %g ps", ErrInvalidAveragingTime, averagingTime)
	}
	return &Tracker{
		x:             x,
		averagingTime: averagingTime,
		sides:         make(map[particle.ID]bool),
		next:          make(map[particle.ID]bool),
	}, nil
}

// X returns the reference line.
func (t *Tracker) X() float64 { return t.x }

// AveragingTime returns the trailing window length in ps.
func (t *Tracker) AveragingTime() float64 { return t.averagingTime }

// Step records the crossings made by pop since the previous step. Particles
// seen for the first time establish their side without counting.
func (t *Tracker) Step(dt float64, pop *particle.Population) {
	var s sample
	s.dt = dt

	clear(t.next)
	for i := 0; i < pop.Len(); i++ {
		p := pop.At(i)
		left := p.Position.X < t.x
		if was, ok := t.sides[p.ID]; ok && was != left {
			if was {
				s.leftToRight++
			} else {
				s.rightToLeft++
			}
		}
		t.next[p.ID] = left
	}
	t.sides, t.next = t.next, t.sides

	// A zero-length step adds no time, so its crossings join the newest sample.
	if dt == 0 && len(t.samples) > 0 {
		last := &t.samples[len(t.samples)-1]
		last.leftToRight += s.leftToRight
		last.rightToLeft += s.rightToLeft
	} else {
		t.samples = append(t.samples, s)
	}
	t.elapsed += dt
	t.leftToRight += s.leftToRight
	t.rightToLeft += s.rightToLeft

	// Drop the oldest samples while the rest still cover the window.
	drop := 0
	for drop < len(t.samples)-1 && t.elapsed-t.samples[drop].dt >= t.averagingTime {
		old := t.samples[drop]
		t.elapsed -= old.dt
		t.leftToRight -= old.leftToRight
		t.rightToLeft -= old.rightToLeft
		drop++
	}
	if drop > 0 {
		t.samples = append(t.samples[:0], t.samples[drop:]...)
	}
}

// Full reports whether enough time has been recorded to fill the window.
func (t *Tracker) Full() bool {
	return t.elapsed > 0 && t.elapsed >= t.averagingTime
}

func (t *Tracker) rate(n int) *float64 {
	if !t.Full() {
		return nil
	}
	r := float64(n) / t.elapsed
	return &r
}

// Rate returns the net crossings per ps over the window, positive when
// particles move left to right on balance. It is nil until the window is full.
func (t *Tracker) Rate() *float64 { return t.rate(t.leftToRight - t.rightToLeft) }

// LeftToRight returns the left-to-right crossings per ps, nil until the window is full.
func (t *Tracker) LeftToRight() *float64 { return t.rate(t.leftToRight) }

// RightToLeft returns the right-to-left crossings per ps, nil until the window is full.
func (t *Tracker) RightToLeft() *float64 { return t.rate(t.rightToLeft) }

// Reset forgets every particle and sample.
func (t *Tracker) Reset() {
	clear(t.sides)
	clear(t.next)
	t.samples = t.samples[:0]
	t.elapsed = 0
	t.leftToRight, t.rightToLeft = 0, 0
}
