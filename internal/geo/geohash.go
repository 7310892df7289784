package geo

import "strings"

// DefaultPrecision is the geohash precision used when callers do not ask for
// one. Six characters resolves to roughly ±0.61 km, coarse enough for display
// without pinpointing a venue.
const DefaultPrecision = 6

// base32 is the geohash alphabet. It drops 'a', 'i', 'l', and 'o' from the
// usual base32 set.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the geohash of a coordinate at the given precision, falling
// back to DefaultPrecision when precision is less than 1. Geohashes are used
// only for privacy-coarse area labels; distance math stays on raw coordinates.
func Encode(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = DefaultPrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var geohash strings.Builder
	geohash.Grow(precision)

	bits := 0
	var ch uint

	// Bits alternate longitude, latitude, longitude, ... with five bits per
	// output character.
	even := true
	for geohash.Len() < precision {
		if even {
			mid := (lngRange[0] + lngRange[1]) / 2
			if lng > mid {
				ch |= (1 << (4 - bits))
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat > mid {
				ch |= (1 << (4 - bits))
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++

		if bits == 5 {
			geohash.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return geohash.String()
}
