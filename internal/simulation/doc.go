// Package simulation provides a scenario harness for validating the
// emergent behaviour of the diffusion model over many steps.
//
// The harness drives the real Model, collision detector and SQLite run
// store with no mocks. Scenarios configure the container and experiment,
// say when the divider comes out, and collect a Frame after every step for
// property assertions (energy conservation, containment, mixing).
//
// Each runner gets an isolated SQLite database via t.TempDir().
//
// Usage:
//
//	func TestMixing(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:            "mixing",
//	        Options:         opts,
//	        TimeStep:        0.5,
//	        Steps:           400,
//	        RemoveDividerAt: 0,
//	    })
//	    simulation.AssertEnergyConserved(t, result, 1e-9)
//	    simulation.AssertMixed(t, result, 1)
//	}
package simulation
