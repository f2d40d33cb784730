package simulation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/particle"
	"github.com/nvandessel/gasprops/internal/store"
)

// Runner runs scenarios against a real model and run store.
type Runner struct {
	t     *testing.T
	store *store.SQLiteRunStore
}

// NewRunner creates a runner with an isolated SQLite store.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	s, err := store.NewSQLiteRunStore(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &Runner{t: t, store: s}
}

// Run executes the scenario. A step error ends the run and is returned in
// the result rather than failing the test, so scenarios can assert on it.
func (r *Runner) Run(sc Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	m, err := diffusion.New(sc.Options)
	if err != nil {
		r.t.Fatalf("%s: diffusion.New: %v", sc.Name, err)
	}
	if sc.Setup != nil {
		if err := sc.Setup(m); err != nil {
			r.t.Fatalf("%s: setup: %v", sc.Name, err)
		}
	}

	runID, err := r.store.CreateRun(ctx, store.Run{
		Seed:       sc.Options.Seed,
		TimeStep:   sc.TimeStep,
		Divider:    m.Container().HasDivider(),
		Experiment: m.Experiment(),
	})
	if err != nil {
		r.t.Fatalf("%s: create run: %v", sc.Name, err)
	}

	result := SimulationResult{Scenario: sc, Model: m, RunID: runID}
	result.Frames = append(result.Frames, capture(m))

	var pending []store.Sample
	var walls int
	for i := range sc.Steps {
		if err := r.beforeStep(i, sc, m); err != nil {
			r.t.Fatalf("%s: step %d: %v", sc.Name, i, err)
		}
		if err := m.Step(sc.TimeStep); err != nil {
			result.Err = err
			break
		}
		walls += m.LastStats().WallCollisions + m.LastStats().DividerCollisions
		result.Frames = append(result.Frames, capture(m))

		if sc.SampleEvery > 0 && m.Steps()%sc.SampleEvery == 0 {
			pending = append(pending, store.NewSample(m.Steps(), m.Time(), m.Observables(), walls))
			walls = 0
		}
	}

	if err := r.store.AddSamples(ctx, runID, pending); err != nil {
		r.t.Fatalf("%s: add samples: %v", sc.Name, err)
	}
	status := store.StatusCompleted
	if result.Err != nil {
		status = store.StatusFailed
	}
	if err := r.store.FinishRun(ctx, runID, status, m.Steps(), result.Err); err != nil {
		r.t.Fatalf("%s: finish run: %v", sc.Name, err)
	}
	result.Samples, err = r.store.Samples(ctx, runID)
	if err != nil {
		r.t.Fatalf("%s: read samples: %v", sc.Name, err)
	}
	return result
}

// Store returns the runner's run store.
func (r *Runner) Store() *store.SQLiteRunStore { return r.store }

func (r *Runner) beforeStep(i int, sc Scenario, m *diffusion.Model) error {
	var errs []error
	if sc.RemoveDividerAt != Never && i == sc.RemoveDividerAt {
		errs = append(errs, m.SetDividerPresent(false))
	}
	if sc.InsertDividerAt != Never && i == sc.InsertDividerAt {
		errs = append(errs, m.SetDividerPresent(true))
	}
	if sc.BeforeStep != nil {
		errs = append(errs, sc.BeforeStep(i, m))
	}
	return errors.Join(errs...)
}

// capture copies the state of m into a frame.
func capture(m *diffusion.Model) Frame {
	f := Frame{
		Step:          m.Steps(),
		Time:          m.Time(),
		Divider:       m.Container().HasDivider(),
		KineticEnergy: m.TotalKineticEnergy(),
		Observables:   m.Observables(),
	}
	for i, s := range constants.AllSpecies {
		f.Particles[i] = append([]particle.Particle(nil), m.Particles(s)...)
		f.Escaped += m.Escaped(s)
	}
	return f
}
