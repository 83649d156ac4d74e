// Package units provides shared constants and conversion for temperature units.
package units

// Unit constants
const (
	Celsius    = "c"
	Fahrenheit = "f"
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{Celsius, Fahrenheit}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, v := range ValidUnits {
		if unit == v {
			return true
		}
	}
	return false
}

// ConvertTemperature converts a temperature from Celsius to the target unit.
// The database stores temperatures in Celsius.
func ConvertTemperature(tempC float64, targetUnit string) float64 {
	switch targetUnit {
	case Fahrenheit:
		return tempC*9/5 + 32
	default:
		return tempC
	}
}
