package observe

import (
	"fmt"
	"strings"

	"github.com/nvandessel/gasprops/internal/constants"
)

// Units selects how temperatures are displayed.
type Units int

const (
	Kelvin Units = iota
	Celsius
)

func (u Units) String() string {
	if u == Celsius {
		return "celsius"
	}
	return "kelvin"
}

// Symbol returns the unit suffix, e.g. "K".
func (u Units) Symbol() string {
	if u == Celsius {
		return "°C"
	}
	return "K"
}

// ParseUnits accepts "kelvin", "k", "celsius" or "c" in any case.
func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kelvin", "k":
		return Kelvin, nil
	case "celsius", "c":
		return Celsius, nil
	}
	return Kelvin, fmt.Errorf("unknown temperature units %q", s)
}

// ToCelsius converts kelvin to degrees Celsius.
func ToCelsius(k float64) float64 { return k - constants.ZeroCelsius }

// Convert expresses a temperature in kelvin in u. A nil temperature stays nil.
func (u Units) Convert(k *float64) *float64 {
	if k == nil {
		return nil
	}
	v := *k
	if u == Celsius {
		v = ToCelsius(v)
	}
	return &v
}
