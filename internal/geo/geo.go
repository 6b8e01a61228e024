// Package geo implements great-circle distance and bearing between
// coordinate pairs expressed in degrees.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

var (
	ErrNonFinite  = errors.New("coordinate is not a finite number")
	ErrOutOfRange = errors.New("coordinate out of range")
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ValidatePoint accepts latitude in [-90, 90] and longitude in [-180, 180].
func ValidatePoint(p Point) error {
	if !isFinite(p.Latitude) || !isFinite(p.Longitude) {
		return ErrNonFinite
	}
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return ErrOutOfRange
	}
	return nil
}

// DistanceMeters returns the haversine distance between a and b.
// Non-finite input yields NaN; callers validate with ValidatePoint first.
func DistanceMeters(a, b Point) float64 {
	if !finitePair(a, b) {
		return math.NaN()
	}

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// Rounding can push h a hair outside [0, 1] for coincident or antipodal points.
	h = clamp(h, 0, 1)

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// BearingDegrees returns the initial compass bearing from a to b in [0, 360),
// measured clockwise from true north. BearingDegrees(a, b) and
// BearingDegrees(b, a) generally do not differ by exactly 180.
func BearingDegrees(a, b Point) float64 {
	if !finitePair(a, b) {
		return math.NaN()
	}

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePair(a, b Point) bool {
	return isFinite(a.Latitude) && isFinite(a.Longitude) && isFinite(b.Latitude) && isFinite(b.Longitude)
}
