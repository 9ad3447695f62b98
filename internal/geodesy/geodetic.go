package geodesy

import (
	"fmt"
	"math"
	"strings"
)

// Ellipsoid is a reference ellipsoid. The semi-major axis is in km.
type Ellipsoid struct {
	Name          string
	SemiMajorAxis float64
	Flattening    float64
}

var (
	WGS84 = Ellipsoid{Name: "wgs84", SemiMajorAxis: 6378.137, Flattening: 1 / 298.257223563}
	WGS72 = Ellipsoid{Name: "wgs72", SemiMajorAxis: 6378.135, Flattening: 1 / 298.26}
	GRS80 = Ellipsoid{Name: "grs80", SemiMajorAxis: 6378.137, Flattening: 1 / 298.257222101}
)

// EllipsoidByName looks up a built-in ellipsoid, case-insensitively.
func EllipsoidByName(name string) (Ellipsoid, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wgs84", "wgs-84":
		return WGS84, nil
	case "wgs72", "wgs-72":
		return WGS72, nil
	case "grs80", "grs-80":
		return GRS80, nil
	}
	return Ellipsoid{}, fmt.Errorf("unknown ellipsoid %q (want wgs84, wgs72 or grs80)", name)
}

// SemiMinorAxis returns b = a(1-f) in km.
func (e Ellipsoid) SemiMinorAxis() float64 {
	return e.SemiMajorAxis * (1 - e.Flattening)
}

// EccentricitySquared returns e² = f(2-f).
func (e Ellipsoid) EccentricitySquared() float64 {
	return e.Flattening * (2 - e.Flattening)
}

// Position is a geodetic position. Latitude is north positive in [-90, 90],
// longitude east positive in (-180, 180], altitude in metres above the
// ellipsoid. Converged is false when the latitude iteration did not settle;
// the other fields then hold the best estimate.
type Position struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	Converged bool
}

const (
	maxIterations = 10
	latTolerance  = 1e-12 // radians
)

// ToGeodetic converts an Earth-fixed position (km) to geodetic coordinates.
//
// Latitude starts from Bowring's estimate and is refined by fixed-point
// iteration on φ = atan2(z, p(1 − e²N/(N+h))). Altitude uses
// h = p·cosφ + z·sinφ − a·√(1 − e²sin²φ), which stays well conditioned at
// the poles where p/cosφ does not.
func ToGeodetic(r Vec3, e Ellipsoid) Position {
	a := e.SemiMajorAxis
	b := e.SemiMinorAxis()
	e2 := e.EccentricitySquared()

	p := math.Hypot(r.X, r.Y)
	lon := normalizeLongitude(math.Atan2(r.Y, r.X) * 180 / math.Pi)

	switch {
	case p == 0 && r.Z == 0:
		return Position{Altitude: -a * 1000, Converged: false}
	case p == 0:
		lat := 90.0
		if r.Z < 0 {
			lat = -90
		}
		return Position{Latitude: lat, Longitude: 0, Altitude: (math.Abs(r.Z) - b) * 1000, Converged: true}
	case r.Z == 0:
		return Position{Latitude: 0, Longitude: lon, Altitude: (p - a) * 1000, Converged: true}
	}

	// Inside the evolute of the meridian ellipse the normal through the
	// point is not unique.
	nearCentre := math.Hypot(p, r.Z) < e2*a

	ep2 := e2 / (1 - e2)
	theta := math.Atan2(r.Z*a, p*b)
	st, ct := math.Sin(theta), math.Cos(theta)
	phi := math.Atan2(r.Z+ep2*b*st*st*st, p-e2*a*ct*ct*ct)

	converged := false
	for i := 0; i < maxIterations; i++ {
		sp := math.Sin(phi)
		w := math.Sqrt(1 - e2*sp*sp)
		n := a / w
		h := p*math.Cos(phi) + r.Z*sp - a*w
		if n+h <= 0 {
			break
		}
		next := math.Atan2(r.Z, p*(1-e2*n/(n+h)))
		if math.Abs(next-phi) < latTolerance {
			phi = next
			converged = true
			break
		}
		phi = next
	}

	sp := math.Sin(phi)
	h := p*math.Cos(phi) + r.Z*sp - a*math.Sqrt(1-e2*sp*sp)
	return Position{
		Latitude:  phi * 180 / math.Pi,
		Longitude: lon,
		Altitude:  h * 1000,
		Converged: converged && !nearCentre,
	}
}

// ToCartesian is the closed-form inverse of ToGeodetic. It returns km.
func ToCartesian(pos Position, e Ellipsoid) Vec3 {
	a := e.SemiMajorAxis
	e2 := e.EccentricitySquared()

	lat := pos.Latitude * math.Pi / 180
	lon := pos.Longitude * math.Pi / 180
	h := pos.Altitude / 1000

	sl, cl := math.Sin(lat), math.Cos(lat)
	n := a / math.Sqrt(1-e2*sl*sl)
	return Vec3{
		X: (n + h) * cl * math.Cos(lon),
		Y: (n + h) * cl * math.Sin(lon),
		Z: (n*(1-e2) + h) * sl,
	}
}

// normalizeLongitude maps degrees onto (-180, 180].
func normalizeLongitude(deg float64) float64 {
	deg = math.Mod(deg, 360)
	switch {
	case deg > 180:
		deg -= 360
	case deg <= -180:
		deg += 360
	}
	return deg
}
