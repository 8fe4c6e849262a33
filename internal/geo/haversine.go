// Package geo turns coordinates into travel costs for the routing engine.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the Haversine metric.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Metric computes a non-negative integer travel cost between two points.
// Implementations must return 0 for identical points.
type Metric interface {
	Distance(a, b Point) int
}

// Haversine is the great-circle Metric, in whole meters (floored).
type Haversine struct{}

// Distance implements Metric.
func (Haversine) Distance(a, b Point) int {
	return int(math.Floor(HaversineMeters(a.Lat, a.Lng, b.Lat, b.Lng)))
}

// HaversineMeters returns the great-circle distance in meters.
// The square-root argument is clamped to [0,1] so rounding near antipodes
// cannot push asin out of its domain.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := phi2 - phi1
	dLambda := (lng2 - lng1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	x := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	h := math.Sqrt(math.Min(1, math.Max(0, x)))
	return 2 * EarthRadiusMeters * math.Asin(h)
}
