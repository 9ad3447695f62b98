package sgp4

import (
	"fmt"
	"math"
	"strings"
)

// Gravity holds the Earth model constants SGP4 is evaluated with. Element
// sets are generated against WGS-72, so that is the default.
type Gravity struct {
	Name   string
	Mu     float64 // km^3/s^2
	Radius float64 // km
	J2     float64
	J3     float64
	J4     float64

	xke   float64 // sqrt(mu/re^3) in earth radii per minute
	j3oj2 float64
}

var (
	WGS72 = newGravity("wgs72", 398600.8, 6378.135, 0.001082616, -0.00000253881, -0.00000165597)
	WGS84 = newGravity("wgs84", 398600.5, 6378.137, 0.00108262998905, -0.00000253215306, -0.00000161098761)
)

func newGravity(name string, mu, re, j2, j3, j4 float64) Gravity {
	return Gravity{
		Name:   name,
		Mu:     mu,
		Radius: re,
		J2:     j2,
		J3:     j3,
		J4:     j4,
		xke:    60.0 / math.Sqrt(re*re*re/mu),
		j3oj2:  j3 / j2,
	}
}

// GravityByName returns the named gravity model.
func GravityByName(name string) (Gravity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "wgs72", "wgs-72":
		return WGS72, nil
	case "wgs84", "wgs-84":
		return WGS84, nil
	}
	return Gravity{}, fmt.Errorf("unknown gravity model %q (want wgs72 or wgs84)", name)
}

// kmPerSec converts earth radii per minute to km/s.
func (g Gravity) kmPerSec() float64 {
	return g.Radius * g.xke / 60.0
}
