// Package constants provides named constants used throughout the gasprops codebase.
// Model units are picometers (pm), picoseconds (ps), atomic mass units (AMU)
// and kelvin (K). Velocities are in pm/ps and energies in AMU*pm^2/ps^2.
package constants

// Physical constants
const (
	// Boltzmann is the Boltzmann constant scaled to model units, (pm^2 * AMU)/(ps^2 * K).
	Boltzmann = 8316.0

	// ZeroCelsius is 0 degrees Celsius in kelvin.
	ZeroCelsius = 273.15
)

// Diffusion experiment ranges. Each parameter has a min, max and default.
const (
	// MinNumberOfParticles is the smallest particle count for one species.
	MinNumberOfParticles = 0

	// MaxNumberOfParticles is the largest particle count for one species.
	MaxNumberOfParticles = 200

	// DefaultNumberOfParticles is the initial particle count for one species.
	DefaultNumberOfParticles = 0

	MinMass     = 4.0  // AMU
	MaxMass     = 32.0 // AMU
	DefaultMass = 28.0 // AMU

	MinRadius     = 50.0  // pm
	MaxRadius     = 250.0 // pm
	DefaultRadius = 125.0 // pm

	MinInitialTemperature     = 50.0  // K
	MaxInitialTemperature     = 500.0 // K
	DefaultInitialTemperature = 300.0 // K
)

// Container geometry defaults, in pm.
const (
	DefaultContainerWidth  = 16000.0
	DefaultContainerHeight = 8000.0
	DefaultWallThickness   = 75.0

	// DefaultDividerThickness is the thickness of the removable divider.
	// The divider is centered on the container by default.
	DefaultDividerThickness = 75.0
)

// Region grid defaults. With the default container each region is 2000 pm
// square, comfortably larger than the largest particle diameter.
const (
	DefaultGridRows    = 4
	DefaultGridColumns = 8
)

// Time constants, in ps.
const (
	// DefaultTimeStep is the simulated time advanced per step when the
	// driver does not specify one.
	DefaultTimeStep = 0.1

	// DefaultFlowRateAveragingTime is the trailing window for flow rates.
	DefaultFlowRateAveragingTime = 10.0
)

// CollisionCounterAveragingTimes are the valid averaging times of the
// collision counter, in ps.
var CollisionCounterAveragingTimes = []float64{10, 25, 50, 100}

// DefaultCollisionCounterAveragingTime is the first entry of CollisionCounterAveragingTimes.
const DefaultCollisionCounterAveragingTime = 10.0
