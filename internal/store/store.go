// Package store defines the RunStore interface for recording simulation
// runs and the macroscopic observables sampled during them. Particle
// trajectories are never stored.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/observe"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run is one invocation of the simulation.
type Run struct {
	ID         int64                `json:"id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Status     string               `json:"status"`
	Error      string               `json:"error,omitempty"`
	Seed       uint64               `json:"seed"`
	TimeStep   float64              `json:"time_step"` // ps
	Steps      int                  `json:"steps"`     // completed steps
	Divider    bool                 `json:"divider"`   // divider present at the start
	Experiment diffusion.Experiment `json:"experiment"`
}

// Sample is the observables at one step of a run. Undefined values are nil.
type Sample struct {
	Step int     `json:"step"`
	Time float64 `json:"time"` // ps

	Left1  int `json:"left1"`
	Right1 int `json:"right1"`
	Left2  int `json:"left2"`
	Right2 int `json:"right2"`

	CenterX1         *float64 `json:"center_x1"`
	CenterX2         *float64 `json:"center_x2"`
	LeftTemperature  *float64 `json:"left_temperature"`
	RightTemperature *float64 `json:"right_temperature"`
	FlowRate1        *float64 `json:"flow_rate1"`
	FlowRate2        *float64 `json:"flow_rate2"`

	WallCollisions int `json:"wall_collisions"` // collision counter reading
}

// NewSample captures o at the given step.
func NewSample(step int, t float64, o observe.Observables, wallCollisions int) Sample {
	return Sample{
		Step:             step,
		Time:             t,
		Left1:            o.Counts1.Left,
		Right1:           o.Counts1.Right,
		Left2:            o.Counts2.Left,
		Right2:           o.Counts2.Right,
		CenterX1:         o.CenterXOfMass1,
		CenterX2:         o.CenterXOfMass2,
		LeftTemperature:  o.LeftTemperature,
		RightTemperature: o.RightTemperature,
		FlowRate1:        o.FlowRate1,
		FlowRate2:        o.FlowRate2,
		WallCollisions:   wallCollisions,
	}
}

// RunStore records runs and their samples.
type RunStore interface {
	// CreateRun stores run (its ID is ignored) and returns the new ID.
	CreateRun(ctx context.Context, run Run) (int64, error)

	// AddSamples appends samples to a run.
	AddSamples(ctx context.Context, runID int64, samples []Sample) error

	// FinishRun records the final status of a run.
	FinishRun(ctx context.Context, runID int64, status string, steps int, runErr error) error

	// GetRun returns one run or ErrRunNotFound.
	GetRun(ctx context.Context, runID int64) (*Run, error)

	// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Samples returns the samples of a run ordered by step.
	Samples(ctx context.Context, runID int64) ([]Sample, error)

	Close() error
}
