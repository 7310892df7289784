// Package geo provides geolocation utilities: geodesic distance math and
// privacy-preserving geohash encoding for coarse location display.
package geo

import "math"

// EarthRadiusKm is the mean radius of the Earth in kilometers, used for
// great-circle distance calculations.
const EarthRadiusKm = 6371.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceKm computes the great-circle distance between two coordinates in
// kilometers using the haversine formula. The result is symmetric:
// DistanceKm(a, b) == DistanceKm(b, a).
func DistanceKm(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	// Guard against floating point drift pushing h slightly above 1,
	// which would make Asin return NaN.
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}
