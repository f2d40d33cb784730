// Package diffusion is the diffusion experiment: two gas species separated
// by a removable divider, stepped through collisions and integration, with
// the observables recomputed after every step.
package diffusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/nvandessel/gasprops/internal/collision"
	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/container"
	"github.com/nvandessel/gasprops/internal/events"
	"github.com/nvandessel/gasprops/internal/flowrate"
	"github.com/nvandessel/gasprops/internal/logging"
	"github.com/nvandessel/gasprops/internal/observe"
	"github.com/nvandessel/gasprops/internal/particle"
	"github.com/nvandessel/gasprops/internal/region"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrExperimentLocked is returned when experiment parameters are changed
	// while the divider is removed.
	ErrExperimentLocked = errors.New("experiment parameters are locked while the divider is removed")

	// ErrInvalidTimeStep is returned for negative or non-finite dt.
	ErrInvalidTimeStep = errors.New("invalid time step")

	// ErrUnknownSpecies is returned for species other than 1 and 2.
	ErrUnknownSpecies = errors.New("unknown species")
)

// Options configures a Model.
type Options struct {
	Container   container.Options
	GridRows    int
	GridColumns int
	Experiment  Experiment

	// FlowRateAveragingTime is the trailing window of the flow-rate trackers, in ps.
	FlowRateAveragingTime float64

	// Seed makes particle placement reproducible.
	Seed uint64
}

// DefaultOptions returns the default diffusion container with the divider
// in the middle and no particles.
func DefaultOptions() Options {
	w, h := constants.DefaultContainerWidth, constants.DefaultContainerHeight
	return Options{
		Container: container.Options{
			Bounds:        r2.Box{Max: r2.Vec{X: w, Y: h}},
			WallThickness: constants.DefaultWallThickness,
			Divider:       &container.Divider{X: w / 2, Thickness: constants.DefaultDividerThickness},
		},
		GridRows:              constants.DefaultGridRows,
		GridColumns:           constants.DefaultGridColumns,
		Experiment:            DefaultExperiment(),
		FlowRateAveragingTime: constants.DefaultFlowRateAveragingTime,
		Seed:                  1,
	}
}

// Model owns the particles and everything derived from them. It is not
// safe for concurrent use.
type Model struct {
	container *container.Container
	grid      *region.Grid
	detector  *collision.Detector
	counter   *collision.Counter

	initial    Experiment
	experiment Experiment

	pops    [2]*particle.Population
	flow    [2]*flowrate.Tracker
	escaped [2]int
	rng     particle.Rand

	time        float64
	steps       int
	playing     bool
	lastStats   collision.Stats
	totalStats  collision.Stats
	observables observe.Observables

	bus    *events.Bus
	logger *slog.Logger
}

// New validates opts and creates a paused model populated per opts.Experiment.
func New(opts Options) (*Model, error) {
	c, err := container.New(opts.Container)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Divider(); !ok {
		return nil, fmt.Errorf("%w: the diffusion container needs a divider", container.ErrInvalidGeometry)
	}
	g, err := region.NewGrid(opts.GridRows, opts.GridColumns, c.Bounds())
	if err != nil {
		return nil, err
	}
	if err := opts.Experiment.Validate(c, g); err != nil {
		return nil, err
	}

	m := &Model{
		container:  c,
		grid:       g,
		counter:    collision.NewCounter(),
		initial:    opts.Experiment,
		experiment: opts.Experiment,
		rng:        particle.NewRand(opts.Seed),
		bus:        events.NewBus(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for i, s := range constants.AllSpecies {
		m.pops[i] = particle.NewPopulation(s)
		tr, err := flowrate.New(c.ReferenceX(), opts.FlowRateAveragingTime)
		if err != nil {
			return nil, err
		}
		m.flow[i] = tr
	}
	m.detector = collision.NewDetector(c, g, m.pops[0], m.pops[1])

	if err := m.populate(); err != nil {
		return nil, err
	}
	m.update()
	return m, nil
}

// SetLogger sets the structured logger for diagnostics.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Events returns the bus the model publishes changes on.
func (m *Model) Events() *events.Bus { return m.bus }

func (m *Model) publish(e events.Event) {
	e.Time = m.time
	m.bus.Publish(e)
}

func index(s constants.Species) (int, error) {
	if !s.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownSpecies, int(s))
	}
	return int(s) - 1, nil
}

// startBounds is the side a species is created on.
func startBounds(c *container.Container, s constants.Species) r2.Box {
	if s == constants.Species2 {
		return c.RightBounds()
	}
	return c.LeftBounds()
}

func checkRadiusFits(radius float64, b r2.Box) error {
	minDim := min(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
	if radius >= minDim/2 {
		return fmt.Errorf("%w: radius %g pm must be less than half of %g pm", ErrInvalidExperiment, radius, minDim)
	}
	return nil
}

func (m *Model) spec(s constants.Species) particle.Spec {
	st := m.experiment.For(s)
	return particle.Spec{Mass: st.Mass, Radius: st.Radius, Temperature: st.InitialTemperature}
}

// populate recreates both populations from the experiment.
func (m *Model) populate() error {
	for i, s := range constants.AllSpecies {
		m.pops[i].Clear()
		n := m.experiment.For(s).NumberOfParticles
		if err := m.pops[i].Add(n, startBounds(m.container, s), m.spec(s), m.rng); err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
	}
	return nil
}

// update recomputes the observables from the current particle state.
func (m *Model) update() {
	o := observe.Compute(m.container, m.pops[0], m.pops[1])
	o.FlowRate1 = m.flow[0].Rate()
	o.FlowRate2 = m.flow[1].Rate()
	m.observables = o
}

// unlocked fails while the divider is removed.
func (m *Model) unlocked() error {
	if !m.container.HasDivider() {
		return ErrExperimentLocked
	}
	return nil
}

// Step advances the model by dt ps: collisions are resolved, positions are
// integrated, flow rates are sampled while the divider is removed, and the
// observables are recomputed. If collision response leaves the particles in
// an impossible state the step is aborted with collision.ErrInvariantViolation.
func (m *Model) Step(dt float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return fmt.Errorf("%w: %g ps", ErrInvalidTimeStep, dt)
	}

	stats, err := m.detector.Step()
	if err != nil {
		m.logger.Error("step failed", "time", m.time, "error", err)
		m.publish(events.Event{Kind: events.StepFailed, Err: err})
		return fmt.Errorf("step at t=%g ps: %w", m.time, err)
	}
	m.lastStats = stats
	m.totalStats.Add(stats)

	for _, pop := range m.pops {
		pop.Advance(dt)
	}
	m.removeEscaped()

	if !m.container.HasDivider() {
		for i := range m.pops {
			m.flow[i].Step(dt, m.pops[i])
		}
	}
	m.counter.Record(dt, stats)

	m.time += dt
	m.steps++
	m.update()
	m.logger.Log(context.Background(), logging.LevelTrace, "step",
		"time", m.time, "particle_collisions", stats.ParticleCollisions, "wall_collisions", stats.WallCollisions)
	return nil
}

// removeEscaped drops particles that have left through the opening.
func (m *Model) removeEscaped() {
	if _, ok := m.container.Opening(); !ok {
		return
	}
	for i, s := range constants.AllSpecies {
		n := m.pops[i].RemoveIf(func(p *particle.Particle) bool {
			return m.container.Escaped(p.Position, p.Radius)
		})
		if n == 0 {
			continue
		}
		m.escaped[i] += n
		m.experiment.For(s).NumberOfParticles = m.pops[i].Len()
		m.publish(events.Event{Kind: events.PopulationChanged, Species: s, Count: m.pops[i].Len()})
	}
}

// Run calls Step(dt) steps times, calling after (when non-nil) following
// each step. It stops early when ctx is done or either call fails.
func (m *Model) Run(ctx context.Context, dt float64, steps int, after func(step int) error) error {
	for i := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Step(dt); err != nil {
			return err
		}
		if after != nil {
			if err := after(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetNumberOfParticles grows or shrinks a population to n. New particles
// are placed at random on the species' starting side; removal takes the
// most recently created. Setting the current count does nothing.
func (m *Model) SetNumberOfParticles(s constants.Species, n int) error {
	i, err := index(s)
	if err != nil {
		return err
	}
	if err := m.unlocked(); err != nil {
		return err
	}
	settings := *m.experiment.For(s)
	settings.NumberOfParticles = n
	if err := settings.Validate(); err != nil {
		return err
	}

	pop := m.pops[i]
	delta := n - pop.Len()
	if delta == 0 {
		return nil
	}
	if delta > 0 {
		err = pop.Add(delta, startBounds(m.container, s), m.spec(s), m.rng)
	} else {
		err = pop.Remove(-delta)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}
	m.experiment.For(s).NumberOfParticles = n
	m.update()
	m.logger.Debug("number of particles changed", "species", s.String(), "count", n)
	m.publish(events.Event{Kind: events.PopulationChanged, Species: s, Count: n})
	return nil
}

// PlaceParticle adds one particle of species s with an explicit state. The
// whole disc must lie inside the species' starting side.
func (m *Model) PlaceParticle(s constants.Species, position, velocity r2.Vec) (particle.ID, error) {
	i, err := index(s)
	if err != nil {
		return 0, err
	}
	if err := m.unlocked(); err != nil {
		return 0, err
	}
	settings := m.experiment.For(s)
	if settings.NumberOfParticles >= constants.MaxNumberOfParticles {
		return 0, fmt.Errorf("%w: %s already has %d particles", ErrInvalidExperiment, s, settings.NumberOfParticles)
	}
	p := particle.Particle{Position: position, Radius: settings.Radius}
	if b := startBounds(m.container, s); !p.ContainedIn(b) {
		return 0, fmt.Errorf("%w: particle at %v with radius %g is not inside %v", ErrInvalidExperiment, position, settings.Radius, b)
	}
	if math.IsNaN(velocity.X) || math.IsNaN(velocity.Y) || math.IsInf(velocity.X, 0) || math.IsInf(velocity.Y, 0) {
		return 0, fmt.Errorf("%w: velocity %v is not finite", ErrInvalidExperiment, velocity)
	}

	id := m.pops[i].Place(position, velocity, settings.Mass, settings.Radius)
	settings.NumberOfParticles = m.pops[i].Len()
	m.update()
	m.publish(events.Event{Kind: events.PopulationChanged, Species: s, Count: settings.NumberOfParticles})
	return id, nil
}

// SetMass changes the mass of a species and rescales its speeds to match
// the initial temperature.
func (m *Model) SetMass(s constants.Species, mass float64) error {
	return m.setParameter(s, "mass", mass,
		func(st *Settings) { st.Mass = mass },
		func(pop *particle.Population, st Settings) {
			pop.SetMass(mass)
			pop.SetSpeedForTemperature(st.InitialTemperature)
		})
}

// SetInitialTemperature rescales the speeds of a species to the rms speed
// for t.
func (m *Model) SetInitialTemperature(s constants.Species, t float64) error {
	return m.setParameter(s, "initial_temperature", t,
		func(st *Settings) { st.InitialTemperature = t },
		func(pop *particle.Population, _ Settings) { pop.SetSpeedForTemperature(t) })
}

// SetRadius changes the radius of a species. While paused, particles that
// now stick out of their side are pushed back in; while playing, collision
// response takes care of it.
func (m *Model) SetRadius(s constants.Species, radius float64) error {
	return m.setParameter(s, "radius", radius,
		func(st *Settings) { st.Radius = radius },
		func(pop *particle.Population, _ Settings) {
			pop.SetRadius(radius)
			if !m.playing {
				pop.ConstrainTo(startBounds(m.container, s))
			}
		})
}

// setParameter validates the experiment with set applied, then commits it
// and applies the change to the existing particles.
func (m *Model) setParameter(s constants.Species, name string, v float64, set func(*Settings), apply func(*particle.Population, Settings)) error {
	i, err := index(s)
	if err != nil {
		return err
	}
	if err := m.unlocked(); err != nil {
		return err
	}
	next := m.experiment
	set(next.For(s))
	if err := next.Validate(m.container, m.grid); err != nil {
		return err
	}

	m.experiment = next
	apply(m.pops[i], *next.For(s))
	m.update()
	m.logger.Debug("parameter changed", "species", s.String(), "parameter", name, "value", v)
	m.publish(events.Event{Kind: events.ParameterChanged, Species: s, Parameter: name, Value: v})
	return nil
}

// SetDividerPresent removes or reinserts the divider. Reinserting it starts
// a new experiment: both populations are recreated with their current
// counts on their starting sides and the flow rates are reset.
func (m *Model) SetDividerPresent(present bool) error {
	if !m.container.SetDividerPresent(present) {
		return nil
	}
	m.logger.Info("divider toggled", "present", present, "time", m.time)
	m.publish(events.Event{Kind: events.DividerToggled, Divider: present})
	if !present {
		return nil
	}

	if err := m.populate(); err != nil {
		return err
	}
	for _, tr := range m.flow {
		tr.Reset()
	}
	m.update()
	for i, s := range constants.AllSpecies {
		m.publish(events.Event{Kind: events.PopulationChanged, Species: s, Count: m.pops[i].Len()})
	}
	return nil
}

// Reset restores the divider and the experiment the model was created with,
// recreates the particles and clears time, flow rates and counters.
func (m *Model) Reset() error {
	m.container.Reset()
	m.experiment = m.initial
	m.time = 0
	m.steps = 0
	m.playing = false
	m.lastStats, m.totalStats = collision.Stats{}, collision.Stats{}
	m.escaped = [2]int{}
	m.counter.Reset()
	for _, tr := range m.flow {
		tr.Reset()
	}
	if err := m.populate(); err != nil {
		return err
	}
	m.update()
	m.logger.Info("model reset")
	m.publish(events.Event{Kind: events.Reset})
	return nil
}

// SetPlaying records whether a driver is currently stepping the model.
func (m *Model) SetPlaying(playing bool) { m.playing = playing }

// Playing reports the value last passed to SetPlaying.
func (m *Model) Playing() bool { return m.playing }

// Particles returns the live particles of s. The slice is owned by the
// model and is only valid until the next mutation.
func (m *Model) Particles(s constants.Species) []particle.Particle {
	i, err := index(s)
	if err != nil {
		return nil
	}
	return m.pops[i].All()
}

// Regions returns the partition used by the last collision pass.
func (m *Model) Regions() []region.Summary { return m.grid.Summaries() }

// Grid returns the region grid.
func (m *Model) Grid() *region.Grid { return m.grid }

// Container returns the container. Use SetDividerPresent rather than
// toggling the divider on the container directly.
func (m *Model) Container() *container.Container { return m.container }

// Experiment returns the current experiment parameters.
func (m *Model) Experiment() Experiment { return m.experiment }

// Observables returns the values computed after the last change.
func (m *Model) Observables() observe.Observables { return m.observables }

// Time returns the simulated time in ps.
func (m *Model) Time() float64 { return m.time }

// Steps returns the number of completed steps.
func (m *Model) Steps() int { return m.steps }

// LastStats returns the collisions of the last step.
func (m *Model) LastStats() collision.Stats { return m.lastStats }

// TotalStats returns the collisions since the last reset.
func (m *Model) TotalStats() collision.Stats { return m.totalStats }

// CollisionCounter returns the wall collision counter.
func (m *Model) CollisionCounter() *collision.Counter { return m.counter }

// FlowRate returns the tracker of species s.
func (m *Model) FlowRate(s constants.Species) *flowrate.Tracker {
	i, err := index(s)
	if err != nil {
		return nil
	}
	return m.flow[i]
}

// Escaped returns how many particles of s have left through the opening.
func (m *Model) Escaped(s constants.Species) int {
	i, err := index(s)
	if err != nil {
		return 0
	}
	return m.escaped[i]
}

// TotalKineticEnergy sums the kinetic energy of both species.
func (m *Model) TotalKineticEnergy() float64 {
	return m.pops[0].TotalKineticEnergy() + m.pops[1].TotalKineticEnergy()
}
