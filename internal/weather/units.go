package weather

import "math"

const (
	metersPerMile = 1609.344
	kmhPerMph     = 1.609344
	msPerMph      = 0.44704
	knotsPerMph   = 0.868976
)

// ToMph converts a wind speed from its native unit. Unknown units are assumed mph.
func ToMph(v float64, unit SpeedUnit) float64 {
	switch unit {
	case KilometersPerHour:
		return v / kmhPerMph
	case MetersPerSecond:
		return v / msPerMph
	case Knots:
		return v / knotsPerMph
	default:
		return v
	}
}

// ToFahrenheit converts a temperature from its native unit.
func ToFahrenheit(v float64, unit TemperatureUnit) float64 {
	if unit == Celsius {
		return v*9/5 + 32
	}
	return v
}

// MetersToMiles converts a distance in meters to miles.
func MetersToMiles(m float64) float64 {
	return m / metersPerMile
}

var cardinals = [...]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// DegreesToCardinal maps a bearing to one of 16 compass points.
func DegreesToCardinal(deg float64) string {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	idx := int(math.Round(d/22.5)) % len(cardinals)
	return cardinals[idx]
}
