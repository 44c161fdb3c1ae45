// Package units converts analysis values into display units.
package units

import (
	"math"
	"strings"
)

// Angle display units.
const (
	Degrees = "deg"
	Radians = "rad"
)

// ValidAngleUnits lists the accepted angle units.
var ValidAngleUnits = []string{Degrees, Radians}

// IsValid reports whether unit is an accepted angle unit.
func IsValid(unit string) bool {
	for _, u := range ValidAngleUnits {
		if u == unit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns the accepted units for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidAngleUnits, ", ")
}

// ConvertAngle converts an angle in degrees to unit. Unknown units return
// degrees unchanged.
func ConvertAngle(deg float64, unit string) float64 {
	if unit == Radians {
		return deg * math.Pi / 180
	}
	return deg
}

// Symbol returns the suffix printed after a converted angle.
func Symbol(unit string) string {
	if unit == Radians {
		return "rad"
	}
	return "°"
}
