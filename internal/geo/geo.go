// Package geo provides the small amount of geography the simulation needs:
// great-circle distances and uniform point sampling within a disc.
package geo

import (
	"math"

	"okapi/banksim-api/internal/domain"
)

// Source yields uniform values in [0, 1). Both math/rand sources and the
// simulation's shared guarded source satisfy it.
type Source interface {
	Float64() float64
}

// earthRadiusKm is the mean radius of the earth.
const earthRadiusKm = 6371

// metersPerDegree approximates one degree of latitude.
const metersPerDegree = 111_320

// Distance returns the haversine distance in kilometres between two points.
func Distance(a, b domain.Location) float64 {
	latA := radians(a.Latitude)
	latB := radians(b.Latitude)
	dLat := latB - latA
	dLon := radians(b.Longitude) - radians(a.Longitude)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(latA)*math.Cos(latB)*math.Pow(math.Sin(dLon/2), 2)

	return earthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}

// SampleDisc returns count points distributed uniformly by area within
// radiusMeters of center. Polar sampling with r = R*sqrt(u) avoids the
// centre-clustering a naive radius draw would produce; longitude offsets are
// corrected by cos(latitude).
func SampleDisc(rng Source, center domain.Location, radiusMeters float64, count int) []domain.Location {
	degrees := radiusMeters / metersPerDegree
	points := make([]domain.Location, 0, count)

	for i := 0; i < count; i++ {
		r := degrees * math.Sqrt(rng.Float64())
		theta := rng.Float64() * 2 * math.Pi

		points = append(points, domain.Location{
			Latitude:  center.Latitude + r*math.Cos(theta),
			Longitude: center.Longitude + (r*math.Sin(theta))/math.Cos(radians(center.Latitude)),
		})
	}
	return points
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
