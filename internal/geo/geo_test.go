package geo_test

import (
	"math"
	"math/rand"
	"testing"

	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/geo"
)

func TestDistance_SamePointIsZero(t *testing.T) {
	p := domain.Location{Latitude: 9.3, Longitude: 3.9}
	if d := geo.Distance(p, p); d != 0 {
		t.Fatalf("distance to self = %f, want 0", d)
	}
}

func TestDistance_KnownPair(t *testing.T) {
	// Lagos to Abuja is roughly 536 km great-circle.
	lagos := domain.Location{Latitude: 6.5244, Longitude: 3.3792}
	abuja := domain.Location{Latitude: 9.0765, Longitude: 7.3986}

	d := geo.Distance(lagos, abuja)
	if d < 520 || d > 550 {
		t.Fatalf("Lagos-Abuja distance = %f km, want ~536", d)
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := domain.Location{Latitude: 9.3, Longitude: 3.9}
	b := domain.Location{Latitude: 9.8, Longitude: 4.4}

	if ab, ba := geo.Distance(a, b), geo.Distance(b, a); math.Abs(ab-ba) > 1e-12 {
		t.Fatalf("distance not symmetric: %f vs %f", ab, ba)
	}
}

func TestSampleDisc_WithinRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	center := domain.Location{Latitude: 9.3, Longitude: 3.9}
	radiusMeters := 50_000.0

	points := geo.SampleDisc(rng, center, radiusMeters, 500)
	if len(points) != 500 {
		t.Fatalf("got %d points, want 500", len(points))
	}

	// Allow a small tolerance for the flat-earth degree conversion.
	limit := radiusMeters / 1000 * 1.05
	for i, p := range points {
		if d := geo.Distance(center, p); d > limit {
			t.Fatalf("point %d is %f km from center, beyond %f", i, d, limit)
		}
	}
}

func TestSampleDisc_Deterministic(t *testing.T) {
	center := domain.Location{Latitude: 9.3, Longitude: 3.9}

	a := geo.SampleDisc(rand.New(rand.NewSource(7)), center, 10_000, 20)
	b := geo.SampleDisc(rand.New(rand.NewSource(7)), center, 10_000, 20)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs across equal seeds: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSampleDisc_SpreadsOut(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	center := domain.Location{Latitude: 9.3, Longitude: 3.9}

	points := geo.SampleDisc(rng, center, 50_000, 200)

	var far int
	for _, p := range points {
		if geo.Distance(center, p) > 25 {
			far++
		}
	}
	// Uniform-by-area sampling puts ~75% of points beyond half the radius.
	if far < 100 {
		t.Fatalf("only %d of 200 points beyond half the radius; sampling clusters at the center", far)
	}
}
