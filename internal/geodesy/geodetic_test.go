package geodesy

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGeodeticPins(t *testing.T) {
	a := WGS84.SemiMajorAxis
	b := WGS84.SemiMinorAxis()

	tests := []struct {
		name string
		r    Vec3
		want Position
	}{
		{"prime meridian on equator", Vec3{a, 0, 0}, Position{0, 0, 0, true}},
		{"north pole", Vec3{0, 0, b}, Position{90, 0, 0, true}},
		{"south pole", Vec3{0, 0, -b}, Position{-90, 0, 0, true}},
		{"antimeridian", Vec3{-a, 0, 0}, Position{0, 180, 0, true}},
		{"antimeridian negative zero", Vec3{-a, math.Copysign(0, -1), 0}, Position{0, 180, 0, true}},
		{"east on equator", Vec3{0, a, 0}, Position{0, 90, 0, true}},
		{"above north pole", Vec3{0, 0, b + 400}, Position{90, 0, 400000, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToGeodetic(tt.r, WGS84)
			assert.Equal(t, tt.want.Latitude, got.Latitude)
			assert.Equal(t, tt.want.Longitude, got.Longitude)
			assert.InDelta(t, tt.want.Altitude, got.Altitude, 1e-6)
			assert.Equal(t, tt.want.Converged, got.Converged)
		})
	}
}

func TestToGeodeticDegenerate(t *testing.T) {
	origin := ToGeodetic(Vec3{}, WGS84)
	assert.False(t, origin.Converged)
	assert.False(t, math.IsNaN(origin.Latitude))
	assert.InDelta(t, -WGS84.SemiMajorAxis*1000, origin.Altitude, 1e-6)

	nearCentre := ToGeodetic(Vec3{10, 0, 10}, WGS84)
	assert.False(t, nearCentre.Converged)
	assert.False(t, math.IsNaN(nearCentre.Latitude))
	assert.False(t, math.IsNaN(nearCentre.Altitude))
}

func TestGeodeticRoundTrip(t *testing.T) {
	lats := []float64{-89.99, -75, -45.5, -12.25, -0.001, 0.001, 10, 33.3, 60, 89.99}
	lons := []float64{-179.999, -120, -45, 0, 0.5, 90, 135.75, 180}
	alts := []float64{-1000e3, -10e3, 0, 420e3, 20200e3, 35786e3, 100000e3}

	for _, e := range []Ellipsoid{WGS84, WGS72, GRS80} {
		for _, alt := range alts {
			t.Run(fmt.Sprintf("%s/alt=%.0fkm", e.Name, alt/1000), func(t *testing.T) {
				for _, lat := range lats {
					for _, lon := range lons {
						in := Position{Latitude: lat, Longitude: lon, Altitude: alt}
						got := ToGeodetic(ToCartesian(in, e), e)

						require.True(t, got.Converged, "lat=%v lon=%v", lat, lon)
						assert.InDelta(t, lat, got.Latitude, 1e-6, "lat=%v lon=%v", lat, lon)
						assert.InDelta(t, 0, angleDiff(lon, got.Longitude), 1e-6, "lat=%v lon=%v", lat, lon)
						assert.InDelta(t, alt, got.Altitude, 1.0, "lat=%v lon=%v", lat, lon)
					}
				}
			})
		}
	}
}

func TestLongitudeRange(t *testing.T) {
	for deg := -540.0; deg <= 540; deg += 7.5 {
		lon := normalizeLongitude(deg)
		assert.Greater(t, lon, -180.0, "deg=%v", deg)
		assert.LessOrEqual(t, lon, 180.0, "deg=%v", deg)
		assert.InDelta(t, 0, angleDiff(deg, lon), 1e-9, "deg=%v", deg)
	}
}

func TestEllipsoidByName(t *testing.T) {
	e, err := EllipsoidByName("WGS84")
	require.NoError(t, err)
	assert.Equal(t, WGS84, e)

	e, err = EllipsoidByName(" grs-80 ")
	require.NoError(t, err)
	assert.Equal(t, GRS80, e)

	_, err = EllipsoidByName("clarke1866")
	assert.Error(t, err)
}

func TestEllipsoidDerived(t *testing.T) {
	assert.InDelta(t, 6356.752314245, WGS84.SemiMinorAxis(), 1e-9)
	assert.InDelta(t, 0.00669437999014, WGS84.EccentricitySquared(), 1e-14)
}

// angleDiff returns a-b wrapped onto (-180, 180].
func angleDiff(a, b float64) float64 {
	return normalizeLongitude(a - b)
}
