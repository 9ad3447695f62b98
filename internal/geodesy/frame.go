// Package geodesy rotates propagator output from the TEME frame into the
// Earth-fixed frame and converts Earth-fixed vectors to geodetic
// latitude, longitude and altitude.
//
// The rotation is the simplified Vallado form: a single rotation about the
// Z axis by Greenwich mean sidereal time (IAU-82). Polar motion and the
// equation of the equinoxes are ignored, which is a few tens of metres at
// most and well inside SGP4's own error.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", ch. 3.
package geodesy

import (
	"math"

	"github.com/large-farva/satcal/internal/timesys"
)

// OmegaEarth is Earth's rotation rate in rad/s.
const OmegaEarth = 7.292115146706979e-5

const twoPi = 2 * math.Pi

// Vec3 is a Cartesian vector. Positions are in km, velocities in km/s.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// GMST returns Greenwich mean sidereal time in radians, in [0, 2π).
//
//	θ = 67310.54841 + (876600h + 8640184.812866)·T + 0.093104·T² − 6.2e-6·T³  (seconds)
//
// where T is Julian centuries of UT1 from J2000. T is formed from the split
// Julian date so the whole-day count never swamps the fraction.
func GMST(at timesys.Instant) float64 {
	tut1 := (float64(at.Day-int64(timesys.J2000)) + at.Frac) / 36525.0
	sec := -6.2e-6*tut1*tut1*tut1 +
		0.093104*tut1*tut1 +
		(876600.0*3600.0+8640184.812866)*tut1 +
		67310.54841

	// 240 seconds of time per degree.
	theta := math.Mod(sec*(math.Pi/180)/240.0, twoPi)
	if theta < 0 {
		theta += twoPi
	}
	return theta
}

// TEMEToECEF rotates a TEME position into the Earth-fixed frame at the given
// instant: r_ecef = R3(θ)·r_teme.
func TEMEToECEF(r Vec3, at timesys.Instant) Vec3 {
	return TEMEToECEFWithGMST(r, GMST(at))
}

// TEMEToECEFWithGMST applies R3(gmst) to r. Useful when the angle is already
// known for the instant.
func TEMEToECEFWithGMST(r Vec3, gmst float64) Vec3 {
	c, s := math.Cos(gmst), math.Sin(gmst)
	return Vec3{
		X: r.X*c + r.Y*s,
		Y: -r.X*s + r.Y*c,
		Z: r.Z,
	}
}

// TEMEVelocityToECEF rotates a TEME velocity and removes the apparent
// velocity due to Earth's rotation: v_ecef = R3(θ)·v_teme − ω × r_ecef.
func TEMEVelocityToECEF(r, v Vec3, at timesys.Instant) Vec3 {
	gmst := GMST(at)
	rf := TEMEToECEFWithGMST(r, gmst)
	vf := TEMEToECEFWithGMST(v, gmst)
	return Vec3{
		X: vf.X + OmegaEarth*rf.Y,
		Y: vf.Y - OmegaEarth*rf.X,
		Z: vf.Z,
	}
}
