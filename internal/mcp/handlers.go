package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/nvandessel/gasprops/internal/collision"
	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/flowrate"
	"github.com/nvandessel/gasprops/internal/observe"
	"github.com/nvandessel/gasprops/internal/ratelimit"
	"github.com/nvandessel/gasprops/internal/store"
	"github.com/nvandessel/gasprops/internal/visualization"
)

// ErrInvalidArgument is returned for tool arguments that fail validation
// before reaching the model.
var ErrInvalidArgument = errors.New("invalid argument")

// Resource URIs.
const (
	RegionsURI     = "gasprops://regions"
	ObservablesURI = "gasprops://observables"
)

// registerTools registers all gasprops MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gas_step",
		Description: "Advance the diffusion simulation by a number of time steps and return the new observables",
	}, s.handleStep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gas_observe",
		Description: "Report counts per side, center of mass, temperatures, flow rates and collision totals",
	}, s.handleObserve)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gas_set_parameter",
		Description: "Change an experiment parameter of one species (number_of_particles, mass, radius, initial_temperature). Only allowed while the divider is in",
	}, s.handleSetParameter)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gas_set_divider",
		Description: "Remove the divider to start diffusion, or insert it to recreate both species on their starting sides",
	}, s.handleSetDivider)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gas_reset",
		Description: "Restore the initial experiment, reinsert the divider and clear time and counters",
	}, s.handleReset)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gas_place_particle",
		Description: "Insert one particle at an explicit position and velocity on its species' starting side",
	}, s.handlePlaceParticle)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gas_render",
		Description: "Render the container, region partition and particles as SVG, JSON or HTML",
	}, s.handleRender)
}

// registerResources registers the read-only diagnostic resources.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         RegionsURI,
		Name:        "gasprops-regions",
		Description: "The spatial partition used by the last collision pass: bounds and member count per region.",
		MIMEType:    "application/json",
	}, s.handleRegionsResource)

	s.server.AddResource(&sdk.Resource{
		URI:         ObservablesURI,
		Name:        "gasprops-observables",
		Description: "The observables computed after the last step.",
		MIMEType:    "application/json",
	}, s.handleObservablesResource)
}

func jsonResource(uri string, v any) (*sdk.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", uri, err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

func (s *Server) handleRegionsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	s.mu.Lock()
	regions := s.model.Regions()
	s.mu.Unlock()
	return jsonResource(RegionsURI, regions)
}

func (s *Server) handleObservablesResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	s.mu.Lock()
	obs := s.model.Observables()
	s.mu.Unlock()
	return jsonResource(ObservablesURI, obs)
}

// handleStep advances the model. Steps are charged to the gas_step rate
// limiter one token each.
func (s *Server) handleStep(ctx context.Context, req *sdk.CallToolRequest, args StepInput) (_ *sdk.CallToolResult, _ StepOutput, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	defer func() {
		s.auditTool("gas_step", start, retErr, sanitizeToolParams(map[string]any{
			"steps":     args.Steps,
			"time_step": args.TimeStep,
		}))
	}()

	steps := args.Steps
	if steps == 0 {
		steps = 1
	}
	if steps < 0 {
		return nil, StepOutput{}, fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidArgument, steps)
	}
	dt := args.TimeStep
	if dt == 0 {
		dt = s.timeStep
	}
	if err := ratelimit.CheckCost(s.toolLimiters, "gas_step", float64(steps)); err != nil {
		return nil, StepOutput{}, err
	}

	var stats collision.Stats
	err := s.model.Run(ctx, dt, steps, func(int) error {
		stats.Add(s.model.LastStats())
		return nil
	})
	if err != nil {
		s.finishRun(store.StatusFailed, err)
		return nil, StepOutput{}, fmt.Errorf("step: %w", err)
	}
	if err := s.record(ctx, dt, stats); err != nil {
		s.logger.Warn("failed to record sample", "error", err)
	}

	return nil, StepOutput{
		Steps:       s.model.Steps(),
		Time:        s.model.Time(),
		Collisions:  stats,
		Observables: s.model.Observables(),
	}, nil
}

// record appends the current observables to the run being recorded,
// starting one if needed.
func (s *Server) record(ctx context.Context, dt float64, stats collision.Stats) error {
	if s.runs == nil {
		return nil
	}
	if s.runID == 0 {
		id, err := s.runs.CreateRun(ctx, store.Run{
			Seed:       s.seed,
			TimeStep:   dt,
			Divider:    s.model.Container().HasDivider(),
			Experiment: s.model.Experiment(),
		})
		if err != nil {
			return err
		}
		s.runID = id
	}
	smp := store.NewSample(s.model.Steps(), s.model.Time(), s.model.Observables(), stats.WallCollisions+stats.DividerCollisions)
	return s.runs.AddSamples(ctx, s.runID, []store.Sample{smp})
}

// finishRun closes the run being recorded. The next gas_step starts a new one.
func (s *Server) finishRun(status string, runErr error) {
	if s.runs == nil || s.runID == 0 {
		return
	}
	if err := s.runs.FinishRun(context.Background(), s.runID, status, s.model.Steps(), runErr); err != nil {
		s.logger.Warn("failed to finish run", "run", s.runID, "error", err)
	}
	s.runID = 0
}

func flowRates(t *flowrate.Tracker) FlowRates {
	return FlowRates{Net: t.Rate(), LeftToRight: t.LeftToRight(), RightToLeft: t.RightToLeft()}
}

func (s *Server) handleObserve(ctx context.Context, req *sdk.CallToolRequest, args ObserveInput) (_ *sdk.CallToolResult, _ ObserveOutput, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	defer func() {
		s.auditTool("gas_observe", start, retErr, sanitizeToolParams(map[string]any{"units": args.Units}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gas_observe"); err != nil {
		return nil, ObserveOutput{}, err
	}
	units := observe.Kelvin
	if args.Units != "" {
		u, err := observe.ParseUnits(args.Units)
		if err != nil {
			return nil, ObserveOutput{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		units = u
	}

	obs := s.model.Observables()
	obs.LeftTemperature = units.Convert(obs.LeftTemperature)
	obs.RightTemperature = units.Convert(obs.RightTemperature)

	return nil, ObserveOutput{
		Time:             s.model.Time(),
		Steps:            s.model.Steps(),
		Divider:          s.model.Container().HasDivider(),
		Experiment:       s.model.Experiment(),
		Observables:      obs,
		Units:            units.String(),
		FlowRate1:        flowRates(s.model.FlowRate(constants.Species1)),
		FlowRate2:        flowRates(s.model.FlowRate(constants.Species2)),
		TotalCollisions:  s.model.TotalStats(),
		WallCollisions:   s.model.CollisionCounter().Count(),
		KineticEnergy:    s.model.TotalKineticEnergy(),
		EscapedParticles: [2]int{s.model.Escaped(constants.Species1), s.model.Escaped(constants.Species2)},
	}, nil
}

func parseSpecies(s string) (constants.Species, error) {
	sp, err := constants.ParseSpecies(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return sp, nil
}

func (s *Server) handleSetParameter(ctx context.Context, req *sdk.CallToolRequest, args SetParameterInput) (_ *sdk.CallToolResult, _ SetParameterOutput, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	defer func() {
		s.auditTool("gas_set_parameter", start, retErr, sanitizeToolParams(map[string]any{
			"species":   args.Species,
			"parameter": args.Parameter,
			"value":     args.Value,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gas_set_parameter"); err != nil {
		return nil, SetParameterOutput{}, err
	}
	sp, err := parseSpecies(args.Species)
	if err != nil {
		return nil, SetParameterOutput{}, err
	}

	switch args.Parameter {
	case "number_of_particles":
		if args.Value != math.Trunc(args.Value) {
			return nil, SetParameterOutput{}, fmt.Errorf("%w: number_of_particles must be a whole number, got %g", ErrInvalidArgument, args.Value)
		}
		err = s.model.SetNumberOfParticles(sp, int(args.Value))
	case "mass":
		err = s.model.SetMass(sp, args.Value)
	case "radius":
		err = s.model.SetRadius(sp, args.Value)
	case "initial_temperature":
		err = s.model.SetInitialTemperature(sp, args.Value)
	default:
		return nil, SetParameterOutput{}, fmt.Errorf("%w: unknown parameter %q", ErrInvalidArgument, args.Parameter)
	}
	if err != nil {
		return nil, SetParameterOutput{}, err
	}

	return nil, SetParameterOutput{
		Experiment: s.model.Experiment(),
		Message:    fmt.Sprintf("%s %s set to %g", sp, args.Parameter, args.Value),
	}, nil
}

func (s *Server) handleSetDivider(ctx context.Context, req *sdk.CallToolRequest, args SetDividerInput) (_ *sdk.CallToolResult, _ SetDividerOutput, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	defer func() {
		s.auditTool("gas_set_divider", start, retErr, sanitizeToolParams(map[string]any{"present": args.Present}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gas_set_divider"); err != nil {
		return nil, SetDividerOutput{}, err
	}
	was := s.model.Container().HasDivider()
	if err := s.model.SetDividerPresent(args.Present); err != nil {
		return nil, SetDividerOutput{}, err
	}

	msg := "divider unchanged"
	switch {
	case args.Present && !was:
		msg = "divider inserted, particles recreated"
	case !args.Present && was:
		msg = "divider removed, diffusion started"
	}
	obs := s.model.Observables()
	return nil, SetDividerOutput{
		Divider: s.model.Container().HasDivider(),
		Counts1: obs.Counts1,
		Counts2: obs.Counts2,
		Message: msg,
	}, nil
}

func (s *Server) handleReset(ctx context.Context, req *sdk.CallToolRequest, args ResetInput) (_ *sdk.CallToolResult, _ ResetOutput, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	defer func() {
		s.auditTool("gas_reset", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gas_reset"); err != nil {
		return nil, ResetOutput{}, err
	}
	s.finishRun(store.StatusCompleted, nil)
	if err := s.model.Reset(); err != nil {
		return nil, ResetOutput{}, fmt.Errorf("reset: %w", err)
	}
	s.model.CollisionCounter().SetRunning(true)

	return nil, ResetOutput{
		Experiment: s.model.Experiment(),
		Message:    "model reset",
	}, nil
}

func (s *Server) handlePlaceParticle(ctx context.Context, req *sdk.CallToolRequest, args PlaceParticleInput) (_ *sdk.CallToolResult, _ PlaceParticleOutput, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	defer func() {
		s.auditTool("gas_place_particle", start, retErr, sanitizeToolParams(map[string]any{
			"species": args.Species,
			"x":       args.X,
			"y":       args.Y,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gas_place_particle"); err != nil {
		return nil, PlaceParticleOutput{}, err
	}
	sp, err := parseSpecies(args.Species)
	if err != nil {
		return nil, PlaceParticleOutput{}, err
	}
	id, err := s.model.PlaceParticle(sp, r2.Vec{X: args.X, Y: args.Y}, r2.Vec{X: args.VX, Y: args.VY})
	if err != nil {
		return nil, PlaceParticleOutput{}, err
	}
	return nil, PlaceParticleOutput{
		ID:    uint64(id),
		Count: len(s.model.Particles(sp)),
	}, nil
}

func (s *Server) handleRender(ctx context.Context, req *sdk.CallToolRequest, args RenderInput) (_ *sdk.CallToolResult, _ RenderOutput, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	defer func() {
		s.auditTool("gas_render", start, retErr, sanitizeToolParams(map[string]any{
			"format":  args.Format,
			"regions": args.Regions,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gas_render"); err != nil {
		return nil, RenderOutput{}, err
	}
	format := visualization.FormatSVG
	if args.Format != "" {
		f, err := visualization.ParseFormat(args.Format)
		if err != nil {
			return nil, RenderOutput{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		format = f
	}

	scene := visualization.Snapshot(s.model)
	opts := visualization.Options{Regions: args.Regions}
	var out string
	switch format {
	case visualization.FormatJSON:
		data, err := visualization.RenderJSON(scene)
		if err != nil {
			return nil, RenderOutput{}, err
		}
		out = string(data)
	case visualization.FormatHTML:
		data, err := visualization.RenderHTML(scene, opts, false)
		if err != nil {
			return nil, RenderOutput{}, fmt.Errorf("render HTML: %w", err)
		}
		out = string(data)
	default:
		out = visualization.RenderSVG(scene, opts)
	}

	return nil, RenderOutput{
		Format:    string(format),
		Scene:     out,
		Particles: len(scene.Particles),
	}, nil
}
