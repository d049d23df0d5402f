// Package geo holds the position primitives of a tracked route: points, raw
// fixes, great-circle distance, the sample filter that rejects noisy fixes,
// and the accumulator that sums accepted legs.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Finite reports whether both coordinates are real numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// Fix is one raw reading from a position source.
type Fix struct {
	Lat            float64 `json:"lat" validate:"latitude"`
	Lng            float64 `json:"lng" validate:"longitude"`
	AccuracyMeters float64 `json:"accuracy" validate:"gte=0"`
}

// Point drops the accuracy radius.
func (f Fix) Point() Point {
	return Point{Lat: f.Lat, Lng: f.Lng}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Haversine returns the great-circle distance between a and b in kilometers.
// Antipodal points and the date line get no special treatment.
func Haversine(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
