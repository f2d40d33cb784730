package diffusion

import (
	"errors"
	"math"
	"testing"

	"github.com/nvandessel/gasprops/internal/constants"
)

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(*Settings) {}, false},
		{"max particles", func(s *Settings) { s.NumberOfParticles = constants.MaxNumberOfParticles }, false},
		{"too many particles", func(s *Settings) { s.NumberOfParticles = constants.MaxNumberOfParticles + 1 }, true},
		{"light", func(s *Settings) { s.Mass = constants.MinMass }, false},
		{"too light", func(s *Settings) { s.Mass = 3.9 }, true},
		{"too small", func(s *Settings) { s.Radius = 10 }, true},
		{"too hot", func(s *Settings) { s.InitialTemperature = 501 }, true},
		{"NaN temperature", func(s *Settings) { s.InitialTemperature = math.NaN() }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidExperiment) {
				t.Errorf("error %v does not wrap ErrInvalidExperiment", err)
			}
		})
	}
}

func TestExperiment_For(t *testing.T) {
	e := DefaultExperiment()
	e.For(constants.Species2).Mass = 4
	if e.Species2.Mass != 4 {
		t.Errorf("For(Species2) did not alias Species2")
	}
	if e.For(constants.Species(7)) != nil {
		t.Errorf("For(7) should be nil")
	}
}
