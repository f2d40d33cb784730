package collision

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nvandessel/gasprops/internal/constants"
)

// ErrInvalidAveragingTime is returned for averaging times the counter does
// not offer.
var ErrInvalidAveragingTime = errors.New("invalid averaging time")

// Counter counts particle-wall collisions over a fixed sample period. The
// count of the last completed sample is what gets displayed; the counter
// only accumulates while it is running.
type Counter struct {
	averagingTime float64
	running       bool

	elapsed float64
	pending int
	count   int
}

// NewCounter returns a stopped counter using the default averaging time.
func NewCounter() *Counter {
	return &Counter{averagingTime: constants.DefaultCollisionCounterAveragingTime}
}

// AveragingTime returns the sample period in ps.
func (c *Counter) AveragingTime() float64 { return c.averagingTime }

// SetAveragingTime changes the sample period and discards the sample in progress.
func (c *Counter) SetAveragingTime(t float64) error {
	if !slices.Contains(constants.CollisionCounterAveragingTimes, t) {
		return fmt.Errorf("%w: %g ps (want one of %v)", ErrInvalidAveragingTime, t, constants.CollisionCounterAveragingTimes)
	}
	c.averagingTime = t
	c.elapsed, c.pending = 0, 0
	return nil
}

// Running reports whether the counter is accumulating.
func (c *Counter) Running() bool { return c.running }

// SetRunning starts or stops the counter. Stopping clears the count.
func (c *Counter) SetRunning(running bool) {
	c.running = running
	if !running {
		c.Reset()
	}
}

// Count returns the number of wall collisions in the last complete sample.
func (c *Counter) Count() int { return c.count }

// Record adds the wall collisions of one step of length dt.
func (c *Counter) Record(dt float64, s Stats) {
	if !c.running {
		return
	}
	c.elapsed += dt
	c.pending += s.WallCollisions + s.DividerCollisions
	if c.elapsed >= c.averagingTime {
		c.count = c.pending
		c.elapsed, c.pending = 0, 0
	}
}

// Reset clears the count and the sample in progress.
func (c *Counter) Reset() {
	c.elapsed, c.pending, c.count = 0, 0, 0
}
