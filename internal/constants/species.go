package constants

import "fmt"

// Species identifies one of the two particle populations of the diffusion experiment.
type Species int

const (
	// Species1 starts on the left side of the divider.
	Species1 Species = 1

	// Species2 starts on the right side of the divider.
	Species2 Species = 2
)

// AllSpecies lists every species in iteration order.
var AllSpecies = []Species{Species1, Species2}

// Valid returns true if the species is a recognized value.
func (s Species) Valid() bool {
	switch s {
	case Species1, Species2:
		return true
	}
	return false
}

// String returns the string representation of the species.
func (s Species) String() string {
	return fmt.Sprintf("species%d", int(s))
}

// ParseSpecies maps "1", "2", "species1" or "species2" to a Species.
func ParseSpecies(s string) (Species, error) {
	switch s {
	case "1", "species1":
		return Species1, nil
	case "2", "species2":
		return Species2, nil
	}
	return 0, fmt.Errorf("invalid species %q (valid: 1, 2)", s)
}
