package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/ratelimit"
)

func TestHandleStep(t *testing.T) {
	server, _ := setupTestServer(t, nil)
	ctx := context.Background()

	_, out, err := server.handleStep(ctx, nil, StepInput{})
	if err != nil {
		t.Fatalf("handleStep: %v", err)
	}
	if out.Steps != 1 || out.Time != 0.5 {
		t.Errorf("default step: steps=%d time=%v, want 1 and 0.5", out.Steps, out.Time)
	}

	_, out, err = server.handleStep(ctx, nil, StepInput{Steps: 3, TimeStep: 1})
	if err != nil {
		t.Fatalf("handleStep: %v", err)
	}
	if out.Steps != 4 || out.Time != 3.5 {
		t.Errorf("steps=%d time=%v, want 4 and 3.5", out.Steps, out.Time)
	}
	if out.Observables.Counts1.Total() != 4 || out.Observables.Counts2.Total() != 4 {
		t.Errorf("unexpected counts %+v %+v", out.Observables.Counts1, out.Observables.Counts2)
	}
}

func TestHandleStep_InvalidArguments(t *testing.T) {
	server, _ := setupTestServer(t, nil)
	ctx := context.Background()

	if _, _, err := server.handleStep(ctx, nil, StepInput{Steps: -1}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative steps: %v, want ErrInvalidArgument", err)
	}
	if _, _, err := server.handleStep(ctx, nil, StepInput{TimeStep: -1}); !errors.Is(err, diffusion.ErrInvalidTimeStep) {
		t.Errorf("negative dt: %v, want ErrInvalidTimeStep", err)
	}
}

func TestHandleStep_RateLimited(t *testing.T) {
	server, _ := setupTestServer(t, nil)
	server.toolLimiters = ratelimit.ToolLimiters{"gas_step": ratelimit.NewLimiter(0, 10)}
	ctx := context.Background()

	if _, _, err := server.handleStep(ctx, nil, StepInput{Steps: 8}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := server.handleStep(ctx, nil, StepInput{Steps: 3}); !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Errorf("handleStep = %v, want ErrRateLimited", err)
	}
	if server.Model().Steps() != 8 {
		t.Errorf("rejected call must not step the model, steps = %d", server.Model().Steps())
	}
}

func TestHandleObserve(t *testing.T) {
	server, _ := setupTestServer(t, nil)
	ctx := context.Background()

	_, kelvin, err := server.handleObserve(ctx, nil, ObserveInput{})
	if err != nil {
		t.Fatalf("handleObserve: %v", err)
	}
	if !kelvin.Divider || kelvin.Units != "kelvin" {
		t.Errorf("unexpected output %+v", kelvin)
	}
	if kelvin.Observables.LeftTemperature == nil {
		t.Fatal("left temperature should be defined with particles on the left")
	}
	if kelvin.FlowRate1.Net != nil {
		t.Error("flow rate should be undefined before the window fills")
	}

	_, celsius, err := server.handleObserve(ctx, nil, ObserveInput{Units: "celsius"})
	if err != nil {
		t.Fatal(err)
	}
	got := *celsius.Observables.LeftTemperature
	want := *kelvin.Observables.LeftTemperature - constants.ZeroCelsius
	if got != want {
		t.Errorf("celsius = %v, want %v", got, want)
	}
	if *server.Model().Observables().LeftTemperature != *kelvin.Observables.LeftTemperature {
		t.Error("unit conversion must not modify the model's observables")
	}

	if _, _, err := server.handleObserve(ctx, nil, ObserveInput{Units: "rankine"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown units: %v, want ErrInvalidArgument", err)
	}
}

func TestHandleSetParameter(t *testing.T) {
	tests := []struct {
		name    string
		input   SetParameterInput
		check   func(diffusion.Experiment) bool
		wantErr error
	}{
		{
			name:  "count",
			input: SetParameterInput{Species: "1", Parameter: "number_of_particles", Value: 7},
			check: func(e diffusion.Experiment) bool { return e.Species1.NumberOfParticles == 7 },
		},
		{
			name:  "mass",
			input: SetParameterInput{Species: "species2", Parameter: "mass", Value: 4},
			check: func(e diffusion.Experiment) bool { return e.Species2.Mass == 4 },
		},
		{
			name:  "radius",
			input: SetParameterInput{Species: "2", Parameter: "radius", Value: 80},
			check: func(e diffusion.Experiment) bool { return e.Species2.Radius == 80 },
		},
		{
			name:  "temperature",
			input: SetParameterInput{Species: "1", Parameter: "initial_temperature", Value: 450},
			check: func(e diffusion.Experiment) bool { return e.Species1.InitialTemperature == 450 },
		},
		{
			name:    "fractional count",
			input:   SetParameterInput{Species: "1", Parameter: "number_of_particles", Value: 2.5},
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "unknown species",
			input:   SetParameterInput{Species: "3", Parameter: "mass", Value: 10},
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "out of range",
			input:   SetParameterInput{Species: "1", Parameter: "mass", Value: 1000},
			wantErr: diffusion.ErrInvalidExperiment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setupTestServer(t, nil)
			_, out, err := server.handleSetParameter(context.Background(), nil, tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(out.Experiment) {
				t.Errorf("experiment not updated: %+v", out.Experiment)
			}
		})
	}
}

func TestHandleSetDivider(t *testing.T) {
	server, _ := setupTestServer(t, nil)
	ctx := context.Background()

	_, out, err := server.handleSetDivider(ctx, nil, SetDividerInput{Present: false})
	if err != nil {
		t.Fatal(err)
	}
	if out.Divider || !strings.Contains(out.Message, "removed") {
		t.Errorf("unexpected output %+v", out)
	}

	_, _, err = server.handleSetParameter(ctx, nil, SetParameterInput{Species: "1", Parameter: "mass", Value: 10})
	if !errors.Is(err, diffusion.ErrExperimentLocked) {
		t.Errorf("parameter change with divider out: %v, want ErrExperimentLocked", err)
	}

	if _, _, err := server.handleStep(ctx, nil, StepInput{Steps: 20}); err != nil {
		t.Fatal(err)
	}
	_, out, err = server.handleSetDivider(ctx, nil, SetDividerInput{Present: true})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Divider || out.Counts1.Left != 4 || out.Counts2.Right != 4 {
		t.Errorf("reinsertion should recreate both species on their sides: %+v", out)
	}
}

func TestHandleReset(t *testing.T) {
	server, _ := setupTestServer(t, nil)
	ctx := context.Background()

	server.handleSetParameter(ctx, nil, SetParameterInput{Species: "1", Parameter: "number_of_particles", Value: 9})
	server.handleStep(ctx, nil, StepInput{Steps: 5})

	_, out, err := server.handleReset(ctx, nil, ResetInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Experiment.Species1.NumberOfParticles != 4 {
		t.Errorf("reset should restore the initial experiment, got %+v", out.Experiment)
	}
	if server.Model().Steps() != 0 || server.Model().Time() != 0 {
		t.Error("reset should clear time")
	}
	if !server.Model().CollisionCounter().Running() {
		t.Error("collision counter should keep running after reset")
	}
}

func TestHandlePlaceParticle(t *testing.T) {
	server, _ := setupTestServer(t, nil)
	ctx := context.Background()

	_, out, err := server.handlePlaceParticle(ctx, nil, PlaceParticleInput{Species: "1", X: 300, Y: 500, VX: 10})
	if err != nil {
		t.Fatalf("handlePlaceParticle: %v", err)
	}
	if out.Count != 5 {
		t.Errorf("count = %d, want 5", out.Count)
	}

	// Species 1 is confined to the left side while the divider is in.
	if _, _, err := server.handlePlaceParticle(ctx, nil, PlaceParticleInput{Species: "1", X: 1500, Y: 500}); err == nil {
		t.Error("expected error placing species 1 on the right")
	}
}

func TestHandleRender(t *testing.T) {
	server, _ := setupTestServer(t, nil)
	ctx := context.Background()

	_, svg, err := server.handleRender(ctx, nil, RenderInput{Regions: true})
	if err != nil {
		t.Fatal(err)
	}
	if svg.Format != "svg" || !strings.HasPrefix(svg.Scene, "<svg") || svg.Particles != 8 {
		t.Errorf("unexpected svg output: format=%s particles=%d", svg.Format, svg.Particles)
	}

	_, js, err := server.handleRender(ctx, nil, RenderInput{Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	var scene map[string]any
	if err := json.Unmarshal([]byte(js.Scene), &scene); err != nil {
		t.Errorf("json scene does not decode: %v", err)
	}

	if _, _, err := server.handleRender(ctx, nil, RenderInput{Format: "dot"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown format: %v, want ErrInvalidArgument", err)
	}
}

func TestResources(t *testing.T) {
	server, _ := setupTestServer(t, nil)
	ctx := context.Background()

	res, err := server.handleObservablesResource(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Contents[0].URI != ObservablesURI || res.Contents[0].MIMEType != "application/json" {
		t.Errorf("unexpected contents %+v", res.Contents[0])
	}
	if !strings.Contains(res.Contents[0].Text, "counts_1") {
		t.Errorf("observables resource missing counts: %s", res.Contents[0].Text)
	}
}
