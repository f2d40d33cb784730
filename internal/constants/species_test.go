package constants

import "testing"

func TestSpecies_Valid(t *testing.T) {
	tests := []struct {
		name    string
		species Species
		want    bool
	}{
		{
			name:    "species 1 is valid",
			species: Species1,
			want:    true,
		},
		{
			name:    "species 2 is valid",
			species: Species2,
			want:    true,
		},
		{
			name:    "zero is invalid",
			species: Species(0),
			want:    false,
		},
		{
			name:    "three is invalid",
			species: Species(3),
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.species.Valid(); got != tt.want {
				t.Errorf("Species.Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSpecies(t *testing.T) {
	tests := []struct {
		input   string
		want    Species
		wantErr bool
	}{
		{"1", Species1, false},
		{"species1", Species1, false},
		{"2", Species2, false},
		{"species2", Species2, false},
		{"3", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSpecies(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSpecies(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSpecies(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSpecies_String(t *testing.T) {
	if got := Species1.String(); got != "species1" {
		t.Errorf("Species1.String() = %q, want %q", got, "species1")
	}
	if got := Species2.String(); got != "species2" {
		t.Errorf("Species2.String() = %q, want %q", got, "species2")
	}
}
