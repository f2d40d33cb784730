package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/nvandessel/gasprops/internal/config"
	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/logging"
	"github.com/nvandessel/gasprops/internal/observe"
	"github.com/nvandessel/gasprops/internal/store"
	"github.com/spf13/cobra"
)

// runResult is the summary printed after "gasprops run".
type runResult struct {
	RunID          int64               `json:"run_id,omitempty"`
	Status         string              `json:"status"`
	Error          string              `json:"error,omitempty"`
	Steps          int                 `json:"steps"`
	Time           float64             `json:"time"` // ps
	Divider        bool                `json:"divider"`
	Units          string              `json:"units"`
	Observables    observe.Observables `json:"observables"`
	KineticEnergy  float64             `json:"kinetic_energy"`
	WallCollisions int                 `json:"wall_collisions"`
	Collisions     int                 `json:"particle_collisions"`
	Escaped        [2]int              `json:"escaped_particles"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Step the diffusion model and print the observables",
		Long: `Build the model from ~/.gasprops/config.yaml, step it and print the
macroscopic observables at the end of the run.

Unless --no-store is given (or store.enabled is false) the run and its
sampled observables are recorded in the history database.

Examples:
  gasprops run                                  # Use configured steps and time step
  gasprops run --steps 5000 --remove-divider-at 100
  gasprops run --n1 50 --n2 50 --units celsius --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			noStore, _ := cmd.Flags().GetBool("no-store")
			removeAt, _ := cmd.Flags().GetInt("remove-divider-at")
			unitsFlag, _ := cmd.Flags().GetString("units")

			units, err := observe.ParseUnits(unitsFlag)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			applyRunFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())

			m, err := diffusion.New(cfg.ModelOptions())
			if err != nil {
				return fmt.Errorf("failed to create model: %w", err)
			}
			m.SetLogger(logger)
			counter := m.CollisionCounter()
			if err := counter.SetAveragingTime(cfg.Simulation.CollisionCounterAveragingTime); err != nil {
				return err
			}
			counter.SetRunning(true)

			if dir, err := config.Dir(); err == nil {
				el := logging.NewEventLogger(dir, cfg.Logging.Level)
				defer el.Close()
				defer el.Attach(m.Events())()
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			notifySignals(sigCh)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					logger.Info("interrupted, stopping run")
					cancel()
				case <-ctx.Done():
				}
			}()

			rec, err := openRecorder(ctx, cfg, noStore, m)
			if err != nil {
				return err
			}
			defer rec.close()

			if removeAt == 0 {
				if err := m.SetDividerPresent(false); err != nil {
					return err
				}
			}

			steps := cfg.Simulation.Steps
			dt := cfg.Simulation.TimeStep
			sampleEvery := cfg.Simulation.SampleEvery
			logger.Debug("starting run", "steps", steps, "time_step", dt, "seed", cfg.Simulation.Seed)

			start := time.Now()
			m.SetPlaying(true)
			runErr := m.Run(ctx, dt, steps, func(i int) error {
				done := i + 1
				if sampleEvery > 0 && done%sampleEvery == 0 {
					rec.sample(m)
				}
				if done == removeAt {
					return m.SetDividerPresent(false)
				}
				return nil
			})

			m.SetPlaying(false)
			res := summarize(m, units)
			res.Status = store.StatusCompleted
			switch {
			case runErr == nil:
			case errors.Is(runErr, context.Canceled):
				res.Status = store.StatusCancelled
			default:
				res.Status = store.StatusFailed
				res.Error = runErr.Error()
			}
			logger.Debug("run finished", "status", res.Status, "steps", m.Steps(), "elapsed", time.Since(start))

			res.RunID, err = rec.finish(m, res.Status, runErr)
			if err != nil {
				logger.Warn("failed to record run", "error", err)
			}

			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			} else {
				printRunResult(cmd.OutOrStdout(), res, units)
			}

			if res.Status == store.StatusFailed {
				return fmt.Errorf("run failed after %d steps: %w", res.Steps, runErr)
			}
			return nil
		},
	}

	cmd.Flags().Int("steps", 0, "Number of steps (default: simulation.steps)")
	cmd.Flags().Float64("dt", 0, "Time step in ps (default: simulation.time_step)")
	cmd.Flags().Uint64("seed", 0, "Random seed (default: simulation.seed)")
	cmd.Flags().Int("sample-every", 0, "Record observables every N steps (default: simulation.sample_every)")
	cmd.Flags().Int("n1", 0, "Number of species 1 particles (default: experiment.species1.number_of_particles)")
	cmd.Flags().Int("n2", 0, "Number of species 2 particles (default: experiment.species2.number_of_particles)")
	cmd.Flags().Int("remove-divider-at", -1, "Remove the divider after this many steps (-1: never)")
	cmd.Flags().String("units", "kelvin", "Temperature units: kelvin or celsius")
	cmd.Flags().Bool("no-store", false, "Do not record this run in the history database")

	return cmd
}

// applyRunFlags overrides cfg with the run flags the user actually set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("steps") {
		cfg.Simulation.Steps, _ = flags.GetInt("steps")
	}
	if flags.Changed("dt") {
		cfg.Simulation.TimeStep, _ = flags.GetFloat64("dt")
	}
	if flags.Changed("seed") {
		cfg.Simulation.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("sample-every") {
		cfg.Simulation.SampleEvery, _ = flags.GetInt("sample-every")
	}
	for _, s := range constants.AllSpecies {
		name := fmt.Sprintf("n%d", s)
		if flags.Changed(name) {
			n, _ := flags.GetInt(name)
			cfg.Experiment.For(s).NumberOfParticles = n
		}
	}
}

func summarize(m *diffusion.Model, units observe.Units) runResult {
	o := m.Observables()
	o.LeftTemperature = units.Convert(o.LeftTemperature)
	o.RightTemperature = units.Convert(o.RightTemperature)
	return runResult{
		Steps:          m.Steps(),
		Time:           m.Time(),
		Divider:        m.Container().HasDivider(),
		Units:          units.String(),
		Observables:    o,
		KineticEnergy:  m.TotalKineticEnergy(),
		WallCollisions: m.TotalStats().WallCollisions,
		Collisions:     m.TotalStats().ParticleCollisions,
		Escaped:        [2]int{m.Escaped(constants.Species1), m.Escaped(constants.Species2)},
	}
}

func printRunResult(w io.Writer, r runResult, units observe.Units) {
	o := r.Observables
	divider := "in"
	if !r.Divider {
		divider = "out"
	}
	fmt.Fprintf(w, "Run %s: %d steps, %.3f ps (divider %s)\n", r.Status, r.Steps, r.Time, divider)
	if r.RunID != 0 {
		fmt.Fprintf(w, "  Recorded as run #%d\n", r.RunID)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", r.Error)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-22s %10s %10s\n", "", "left", "right")
	fmt.Fprintf(w, "  %-22s %10d %10d\n", "species 1", o.Counts1.Left, o.Counts1.Right)
	fmt.Fprintf(w, "  %-22s %10d %10d\n", "species 2", o.Counts2.Left, o.Counts2.Right)
	fmt.Fprintf(w, "  %-22s %10s %10s\n", "temperature ("+units.Symbol()+")", formatValue(o.LeftTemperature), formatValue(o.RightTemperature))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  center of mass x (pm): %s / %s\n", formatValue(o.CenterXOfMass1), formatValue(o.CenterXOfMass2))
	fmt.Fprintf(w, "  flow rate (1/ps):      %s / %s\n", formatValue(o.FlowRate1), formatValue(o.FlowRate2))
	fmt.Fprintf(w, "  kinetic energy:        %.4g AMU·pm²/ps²\n", r.KineticEnergy)
	fmt.Fprintf(w, "  collisions:            %d particle, %d wall\n", r.Collisions, r.WallCollisions)
	if r.Escaped != [2]int{} {
		fmt.Fprintf(w, "  escaped:               %d / %d\n", r.Escaped[0], r.Escaped[1])
	}
}

// formatValue prints an undefined observable as "-".
func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// recorder batches samples of one run into the history database. A
// recorder with a nil store records nothing.
type recorder struct {
	runs    store.RunStore
	runID   int64
	pending []store.Sample
}

func openRecorder(ctx context.Context, cfg *config.Config, disabled bool, m *diffusion.Model) (*recorder, error) {
	rec := &recorder{}
	if disabled || !cfg.Store.Enabled {
		return rec, nil
	}
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	runs, err := store.NewSQLiteRunStore(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	id, err := runs.CreateRun(ctx, store.Run{
		StartedAt:  time.Now(),
		Seed:       cfg.Simulation.Seed,
		TimeStep:   cfg.Simulation.TimeStep,
		Divider:    m.Container().HasDivider(),
		Experiment: m.Experiment(),
	})
	if err != nil {
		runs.Close()
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	rec.runs, rec.runID = runs, id
	rec.sample(m)
	return rec, nil
}

func (r *recorder) sample(m *diffusion.Model) {
	if r.runs == nil {
		return
	}
	r.pending = append(r.pending, store.NewSample(m.Steps(), m.Time(), m.Observables(), m.CollisionCounter().Count()))
}

// finish flushes pending samples and records the final status. It uses a
// fresh context so a cancelled run is still recorded.
func (r *recorder) finish(m *diffusion.Model, status string, runErr error) (int64, error) {
	if r.runs == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if n := len(r.pending); n == 0 || r.pending[n-1].Step != m.Steps() {
		r.sample(m)
	}
	if err := r.runs.AddSamples(ctx, r.runID, r.pending); err != nil {
		return r.runID, err
	}
	r.pending = nil
	if status == store.StatusCompleted {
		runErr = nil
	}
	return r.runID, r.runs.FinishRun(ctx, r.runID, status, m.Steps(), runErr)
}

func (r *recorder) close() {
	if r.runs != nil {
		r.runs.Close()
	}
}
