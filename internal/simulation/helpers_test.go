package simulation

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/nvandessel/gasprops/internal/container"
	"github.com/nvandessel/gasprops/internal/diffusion"
)

func smallOptions() diffusion.Options {
	opts := diffusion.DefaultOptions()
	opts.Container = container.Options{
		Bounds:        r2.Box{Max: r2.Vec{X: 2000, Y: 1000}},
		WallThickness: 20,
		Divider:       &container.Divider{X: 1000, Thickness: 20},
	}
	opts.GridRows, opts.GridColumns = 2, 4
	opts.Experiment.Species1.NumberOfParticles = 3
	opts.Experiment.Species1.Radius = 50
	opts.Experiment.Species2.NumberOfParticles = 5
	opts.Experiment.Species2.Radius = 50
	return opts
}
