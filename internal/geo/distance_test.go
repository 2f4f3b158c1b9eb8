package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// metersPerDegreeLat is the length of one degree of latitude on the sphere
// used by DistanceMeters.
const metersPerDegreeLat = EarthRadiusMeters * math.Pi / 180

func TestDistanceMeters_SamePointIsZero(t *testing.T) {
	points := []Point{
		{Lat: 0, Lng: 0},
		{Lat: 52.52, Lng: 13.405},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 90, Lng: 0},
		{Lat: -90, Lng: 180},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, DistanceMeters(p, p), "point %+v", p)
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	pairs := [][2]Point{
		{{Lat: 52.52, Lng: 13.405}, {Lat: 48.8566, Lng: 2.3522}},
		{{Lat: 40.7128, Lng: -74.006}, {Lat: 34.0522, Lng: -118.2437}},
		{{Lat: 0, Lng: 179.9}, {Lat: 0, Lng: -179.9}},
		{{Lat: 10, Lng: 10}, {Lat: -10, Lng: -170}},
	}
	for _, p := range pairs {
		assert.Equal(t, DistanceMeters(p[0], p[1]), DistanceMeters(p[1], p[0]))
	}
}

func TestDistanceMeters_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Point
		want      float64
		tolerance float64
	}{
		{
			name:      "one degree of latitude",
			a:         Point{Lat: 0, Lng: 0},
			b:         Point{Lat: 1, Lng: 0},
			want:      metersPerDegreeLat,
			tolerance: 0.001,
		},
		{
			name:      "berlin to paris",
			a:         Point{Lat: 52.52, Lng: 13.405},
			b:         Point{Lat: 48.8566, Lng: 2.3522},
			want:      877_460,
			tolerance: 1_000,
		},
		{
			name:      "across the antimeridian",
			a:         Point{Lat: 0, Lng: 179.9},
			b:         Point{Lat: 0, Lng: -179.9},
			want:      0.2 * metersPerDegreeLat,
			tolerance: 0.01,
		},
		{
			name:      "antipodal points",
			a:         Point{Lat: 0, Lng: 0},
			b:         Point{Lat: 0, Lng: 180},
			want:      math.Pi * EarthRadiusMeters,
			tolerance: 0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DistanceMeters(tt.a, tt.b), tt.tolerance)
		})
	}
}

func TestIsWithinRadius(t *testing.T) {
	center := Point{Lat: 37.7749, Lng: -122.4194}
	north40 := Point{Lat: center.Lat + 40/metersPerDegreeLat, Lng: center.Lng}
	north60 := Point{Lat: center.Lat + 60/metersPerDegreeLat, Lng: center.Lng}

	assert.True(t, IsWithinRadius(center, center, 0))
	assert.True(t, IsWithinRadius(north40, center, 50))
	assert.False(t, IsWithinRadius(north60, center, 50))

	exact := DistanceMeters(north40, center)
	assert.True(t, IsWithinRadius(north40, center, exact), "boundary is inclusive")
	assert.False(t, IsWithinRadius(north40, center, math.Nextafter(exact, 0)))
}

func TestIsValidCoordinates(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{-90.0001, 0, false},
		{0, 180.0001, false},
		{0, -180.0001, false},
		{math.NaN(), 0, false},
		{0, math.NaN(), false},
		{math.Inf(1), 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidCoordinates(tt.lat, tt.lng), "lat=%v lng=%v", tt.lat, tt.lng)
	}
}
