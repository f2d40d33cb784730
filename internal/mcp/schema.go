package mcp

import (
	"github.com/nvandessel/gasprops/internal/collision"
	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/observe"
)

// StepInput defines the input for the gas_step tool.
type StepInput struct {
	Steps    int     `json:"steps,omitempty" jsonschema:"Number of steps to advance (default: 1)"`
	TimeStep float64 `json:"time_step,omitempty" jsonschema:"Step length in ps (default: the server's configured time step)"`
}

// StepOutput defines the output for the gas_step tool.
type StepOutput struct {
	Steps       int                 `json:"steps" jsonschema:"Total completed steps"`
	Time        float64             `json:"time" jsonschema:"Simulated time in ps"`
	Collisions  collision.Stats     `json:"collisions" jsonschema:"Collisions during this call"`
	Observables observe.Observables `json:"observables" jsonschema:"Observables after the last step"`
}

// ObserveInput defines the input for the gas_observe tool.
type ObserveInput struct {
	Units string `json:"units,omitempty" jsonschema:"Temperature units: kelvin or celsius (default: kelvin)"`
}

// FlowRates holds the directional rates of one species, in particles/ps.
type FlowRates struct {
	Net         *float64 `json:"net"`
	LeftToRight *float64 `json:"left_to_right"`
	RightToLeft *float64 `json:"right_to_left"`
}

// ObserveOutput defines the output for the gas_observe tool.
type ObserveOutput struct {
	Time             float64              `json:"time" jsonschema:"Simulated time in ps"`
	Steps            int                  `json:"steps"`
	Divider          bool                 `json:"divider" jsonschema:"Whether the divider is in"`
	Experiment       diffusion.Experiment `json:"experiment"`
	Observables      observe.Observables  `json:"observables" jsonschema:"Observables; temperatures in the requested units"`
	Units            string               `json:"units"`
	FlowRate1        FlowRates            `json:"flow_rate_1"`
	FlowRate2        FlowRates            `json:"flow_rate_2"`
	TotalCollisions  collision.Stats      `json:"total_collisions"`
	WallCollisions   int                  `json:"wall_collisions_per_sample" jsonschema:"Wall collisions in the last collision counter sample"`
	KineticEnergy    float64              `json:"kinetic_energy" jsonschema:"Total kinetic energy in AMU pm^2/ps^2"`
	EscapedParticles [2]int               `json:"escaped" jsonschema:"Particles lost through the lid opening per species"`
}

// SetParameterInput defines the input for the gas_set_parameter tool.
type SetParameterInput struct {
	Species   string  `json:"species" jsonschema:"Species: 1 or 2"`
	Parameter string  `json:"parameter" jsonschema:"One of number_of_particles, mass, radius, initial_temperature"`
	Value     float64 `json:"value" jsonschema:"New value (count, AMU, pm or K)"`
}

// SetParameterOutput defines the output for the gas_set_parameter tool.
type SetParameterOutput struct {
	Experiment diffusion.Experiment `json:"experiment"`
	Message    string               `json:"message"`
}

// SetDividerInput defines the input for the gas_set_divider tool.
type SetDividerInput struct {
	Present bool `json:"present" jsonschema:"true inserts the divider (recreating both species), false removes it"`
}

// SetDividerOutput defines the output for the gas_set_divider tool.
type SetDividerOutput struct {
	Divider bool           `json:"divider"`
	Counts1 observe.Counts `json:"counts_1"`
	Counts2 observe.Counts `json:"counts_2"`
	Message string         `json:"message"`
}

// ResetInput defines the input for the gas_reset tool.
type ResetInput struct{}

// ResetOutput defines the output for the gas_reset tool.
type ResetOutput struct {
	Experiment diffusion.Experiment `json:"experiment"`
	Message    string               `json:"message"`
}

// PlaceParticleInput defines the input for the gas_place_particle tool.
type PlaceParticleInput struct {
	Species string  `json:"species" jsonschema:"Species: 1 or 2"`
	X       float64 `json:"x" jsonschema:"Center x in pm"`
	Y       float64 `json:"y" jsonschema:"Center y in pm"`
	VX      float64 `json:"vx,omitempty" jsonschema:"Velocity x in pm/ps"`
	VY      float64 `json:"vy,omitempty" jsonschema:"Velocity y in pm/ps"`
}

// PlaceParticleOutput defines the output for the gas_place_particle tool.
type PlaceParticleOutput struct {
	ID    uint64 `json:"id" jsonschema:"Handle of the new particle"`
	Count int    `json:"count" jsonschema:"Particles of the species after insertion"`
}

// RenderInput defines the input for the gas_render tool.
type RenderInput struct {
	Format  string `json:"format,omitempty" jsonschema:"svg, json or html (default: svg)"`
	Regions bool   `json:"regions,omitempty" jsonschema:"Overlay the region partition with member counts"`
}

// RenderOutput defines the output for the gas_render tool.
type RenderOutput struct {
	Format    string `json:"format"`
	Scene     string `json:"scene"`
	Particles int    `json:"particles"`
}
