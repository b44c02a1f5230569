// Package geo provides the distance and extrapolation primitives used to
// route sightings to stations.
package geo

import "math"

// Heading enum - cardinal direction of travel attached to a sighting
type Heading string

const (
	HeadingNorth Heading = "North"
	HeadingSouth Heading = "South"
	HeadingEast  Heading = "East"
	HeadingWest  Heading = "West"
)

// Valid reports whether h is one of the four cardinal headings.
func (h Heading) Valid() bool {
	switch h {
	case HeadingNorth, HeadingSouth, HeadingEast, HeadingWest:
		return true
	}
	return false
}

const (
	earthRadiusKm = 6371.0

	// Degrees a vehicle is assumed to cover before the next sighting
	predictionStepDeg = 0.09
)

// DistanceKm returns the great-circle (haversine) distance in kilometers
// between two coordinate pairs. Symmetric, and zero for identical points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := radians(lat1)
	rlat2 := radians(lat2)
	dlat := radians(lat2 - lat1)
	dlng := radians(lng2 - lng1)

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	// Floating-point underflow can push a fractionally below zero for
	// near-identical points; clamp before the square root.
	if a < 0 {
		a = 0
	}
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

// PredictNext extrapolates the next position by shifting one axis 0.09
// degrees in the heading's direction. This is a coarse heuristic, not a
// road-network model. An unrecognized heading returns the input unchanged.
func PredictNext(lat, lng float64, heading Heading) (float64, float64) {
	switch heading {
	case HeadingNorth:
		lat += predictionStepDeg
	case HeadingSouth:
		lat -= predictionStepDeg
	case HeadingEast:
		lng += predictionStepDeg
	case HeadingWest:
		lng -= predictionStepDeg
	}
	return lat, lng
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
