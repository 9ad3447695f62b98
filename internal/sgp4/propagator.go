// Package sgp4 implements the SGP4 orbit propagator with the SDP4 deep-space
// extension, following the revised Vallado formulation (AIAA 2006-6753 with
// later fixes) in "improved" operation mode.
//
// A Propagator is built once per element set and is immutable afterwards.
// The deep-space resonance integrator restarts from epoch on every call, so
// results depend only on the requested instant and a Propagator can be shared
// freely between goroutines.
package sgp4

import (
	"math"

	"github.com/large-farva/satcal/internal/geodesy"
	"github.com/large-farva/satcal/internal/timesys"
	"github.com/large-farva/satcal/internal/tle"
)

const (
	twoPi   = 2 * math.Pi
	deg2rad = math.Pi / 180
	x2o3    = 2.0 / 3.0
	temp4   = 1.5e-12

	// Orbits with a period of at least this many minutes use SDP4.
	deepSpacePeriod = 225.0
)

// StateVector is a TEME position (km) and velocity (km/s) at an instant.
type StateVector struct {
	At       timesys.Instant
	Position geodesy.Vec3
	Velocity geodesy.Vec3
}

// Option configures a Propagator.
type Option func(*Propagator)

// WithGravity selects the gravity model. Element sets are fitted with
// WGS-72; other models are for comparison work.
func WithGravity(g Gravity) Option {
	return func(p *Propagator) { p.grav = g }
}

// Propagator holds the initialised SGP4 state for one element set.
type Propagator struct {
	grav  Gravity
	epoch timesys.Instant

	// Mean elements at epoch (radians, radians/minute).
	ecco, inclo, nodeo, argpo, mo float64
	noKozai, noUnkozai            float64
	bstar                         float64

	// Fatal condition found at initialisation, reported on every call.
	initErr Kind

	isimp                                  bool
	aycof, con41, cc1, cc4, cc5            float64
	d2, d3, d4, delmo, eta, argpdot, omgcof float64
	sinmao, t2cof, t3cof, t4cof, t5cof     float64
	x1mth2, x7thm1, mdot, nodedot, xlcof   float64
	xmcof, nodecf                          float64
	gsto                                   float64

	deep *deepSpace
}

// New initialises SGP4 for an element set. The element set must have passed
// tle validation.
func New(es *tle.ElementSet, opts ...Option) *Propagator {
	p := &Propagator{
		grav:  WGS72,
		epoch: es.Epoch,
	}
	for _, opt := range opts {
		opt(p)
	}

	const xpdotp = 1440.0 / twoPi // rev/day per rad/min
	p.noKozai = es.MeanMotion / xpdotp
	p.ecco = es.Eccentricity
	p.inclo = es.Inclination * deg2rad
	p.nodeo = es.RAAN * deg2rad
	p.argpo = es.ArgPerigee * deg2rad
	p.mo = es.MeanAnomaly * deg2rad
	p.bstar = es.BStar
	p.gsto = geodesy.GMST(es.Epoch)

	p.init()
	return p
}

// Epoch returns the element set epoch.
func (p *Propagator) Epoch() timesys.Instant {
	return p.epoch
}

// IsDeepSpace reports whether the SDP4 branch is in use.
func (p *Propagator) IsDeepSpace() bool {
	return p.deep != nil
}

// Propagate returns the TEME state at the given instant.
func (p *Propagator) Propagate(at timesys.Instant) (StateVector, error) {
	r, v, err := p.propagate(at.Sub(p.epoch))
	if err != nil {
		return StateVector{}, err
	}
	return StateVector{At: at, Position: r, Velocity: v}, nil
}

// PropagateMinutes returns the TEME state tsince minutes from epoch.
func (p *Propagator) PropagateMinutes(tsince float64) (StateVector, error) {
	r, v, err := p.propagate(tsince)
	if err != nil {
		return StateVector{}, err
	}
	return StateVector{At: p.epoch.AddMinutes(tsince), Position: r, Velocity: v}, nil
}

// init performs the one-time SGP4 initialisation (Vallado initl and sgp4init).
func (p *Propagator) init() {
	g := p.grav
	j2, j4 := g.J2, g.J4

	ss := 78.0/g.Radius + 1.0
	qzms2t := math.Pow((120.0-78.0)/g.Radius, 4)

	// initl: recover the original mean motion and semi-major axis.
	eccsq := p.ecco * p.ecco
	omeosq := 1.0 - eccsq
	rteosq := math.Sqrt(omeosq)
	cosio := math.Cos(p.inclo)
	cosio2 := cosio * cosio

	ak := math.Pow(g.xke/p.noKozai, x2o3)
	d1 := 0.75 * j2 * (3.0*cosio2 - 1.0) / (rteosq * omeosq)
	del := d1 / (ak * ak)
	adel := ak * (1.0 - del*del - del*(1.0/3.0+134.0*del*del/81.0))
	del = d1 / (adel * adel)
	p.noUnkozai = p.noKozai / (1.0 + del)

	ao := math.Pow(g.xke/p.noUnkozai, x2o3)
	sinio := math.Sin(p.inclo)
	po := ao * omeosq
	con42 := 1.0 - 5.0*cosio2
	p.con41 = -con42 - cosio2 - cosio2
	posq := po * po
	rp := ao * (1.0 - p.ecco)

	if rp < 1.0 {
		p.initErr = EpochElementsSubOrbital
	}

	p.isimp = rp < 220.0/g.Radius+1.0

	// Below 156 km perigee the atmospheric density parameter s is lowered.
	sfour := ss
	qzms24 := qzms2t
	perige := (rp - 1.0) * g.Radius
	if perige < 156.0 {
		sfour = perige - 78.0
		if perige < 98.0 {
			sfour = 20.0
		}
		qzms24 = math.Pow((120.0-sfour)/g.Radius, 4)
		sfour = sfour/g.Radius + 1.0
	}

	pinvsq := 1.0 / posq
	tsi := 1.0 / (ao - sfour)
	p.eta = ao * p.ecco * tsi
	etasq := p.eta * p.eta
	eeta := p.ecco * p.eta
	psisq := math.Abs(1.0 - etasq)
	coef := qzms24 * math.Pow(tsi, 4)
	coef1 := coef / math.Pow(psisq, 3.5)
	cc2 := coef1 * p.noUnkozai * (ao*(1.0+1.5*etasq+eeta*(4.0+etasq)) +
		0.375*j2*tsi/psisq*p.con41*(8.0+3.0*etasq*(8.0+etasq)))
	p.cc1 = p.bstar * cc2
	cc3 := 0.0
	if p.ecco > 1.0e-4 {
		cc3 = -2.0 * coef * tsi * g.j3oj2 * p.noUnkozai * sinio / p.ecco
	}
	p.x1mth2 = 1.0 - cosio2
	p.cc4 = 2.0 * p.noUnkozai * coef1 * ao * omeosq *
		(p.eta*(2.0+0.5*etasq) + p.ecco*(0.5+2.0*etasq) -
			j2*tsi/(ao*psisq)*(-3.0*p.con41*(1.0-2.0*eeta+etasq*(1.5-0.5*eeta))+
				0.75*p.x1mth2*(2.0*etasq-eeta*(1.0+etasq))*math.Cos(2.0*p.argpo)))
	p.cc5 = 2.0 * coef1 * ao * omeosq * (1.0 + 2.75*(etasq+eeta) + eeta*etasq)

	cosio4 := cosio2 * cosio2
	temp1 := 1.5 * j2 * pinvsq * p.noUnkozai
	temp2 := 0.5 * temp1 * j2 * pinvsq
	temp3 := -0.46875 * j4 * pinvsq * pinvsq * p.noUnkozai
	p.mdot = p.noUnkozai + 0.5*temp1*rteosq*p.con41 +
		0.0625*temp2*rteosq*(13.0-78.0*cosio2+137.0*cosio4)
	p.argpdot = -0.5*temp1*con42 + 0.0625*temp2*(7.0-114.0*cosio2+395.0*cosio4) +
		temp3*(3.0-36.0*cosio2+49.0*cosio4)
	xhdot1 := -temp1 * cosio
	p.nodedot = xhdot1 + (0.5*temp2*(4.0-19.0*cosio2)+2.0*temp3*(3.0-7.0*cosio2))*cosio
	xpidot := p.argpdot + p.nodedot
	p.omgcof = p.bstar * cc3 * math.Cos(p.argpo)
	if p.ecco > 1.0e-4 {
		p.xmcof = -x2o3 * coef * p.bstar / eeta
	}
	p.nodecf = 3.5 * omeosq * xhdot1 * p.cc1
	p.t2cof = 1.5 * p.cc1
	p.xlcof = longPeriodXlcof(g.j3oj2, sinio, cosio)
	p.aycof = -0.5 * g.j3oj2 * sinio
	delmotemp := 1.0 + p.eta*math.Cos(p.mo)
	p.delmo = delmotemp * delmotemp * delmotemp
	p.sinmao = math.Sin(p.mo)
	p.x7thm1 = 7.0*cosio2 - 1.0

	if twoPi/p.noUnkozai >= deepSpacePeriod {
		p.isimp = true
		p.deep = newDeepSpace(p, eccsq, xpidot)
	}

	if !p.isimp {
		cc1sq := p.cc1 * p.cc1
		p.d2 = 4.0 * ao * tsi * cc1sq
		temp := p.d2 * tsi * p.cc1 / 3.0
		p.d3 = (17.0*ao + sfour) * temp
		p.d4 = 0.5 * temp * ao * tsi * (221.0*ao + 31.0*sfour) * p.cc1
		p.t3cof = p.d2 + 2.0*cc1sq
		p.t4cof = 0.25 * (3.0*p.d3 + p.cc1*(12.0*p.d2+10.0*cc1sq))
		p.t5cof = 0.2 * (3.0*p.d4 + 12.0*p.cc1*p.d3 + 6.0*p.d2*p.d2 + 15.0*cc1sq*(2.0*p.d2+cc1sq))
	}
}

// longPeriodXlcof guards the (1 + cos i) divisor for retrograde equatorial orbits.
func longPeriodXlcof(j3oj2, sinio, cosio float64) float64 {
	den := 1.0 + cosio
	if math.Abs(den) <= temp4 {
		den = temp4
	}
	return -0.25 * j3oj2 * sinio * (3.0 + 5.0*cosio) / den
}

// propagate evaluates SGP4 at tsince minutes from epoch.
func (p *Propagator) propagate(t float64) (geodesy.Vec3, geodesy.Vec3, error) {
	fail := func(k Kind, v float64) (geodesy.Vec3, geodesy.Vec3, error) {
		return geodesy.Vec3{}, geodesy.Vec3{}, &PropagationError{Kind: k, Tsince: t, Value: v}
	}
	if p.initErr != 0 {
		return fail(p.initErr, 0)
	}

	g := p.grav

	// Secular gravity and atmospheric drag.
	xmdf := p.mo + p.mdot*t
	argpdf := p.argpo + p.argpdot*t
	nodedf := p.nodeo + p.nodedot*t
	argpm := argpdf
	mm := xmdf
	t2 := t * t
	nodem := nodedf + p.nodecf*t2
	tempa := 1.0 - p.cc1*t
	tempe := p.bstar * p.cc4 * t
	templ := p.t2cof * t2

	if !p.isimp {
		delomg := p.omgcof * t
		delmtemp := 1.0 + p.eta*math.Cos(xmdf)
		delm := p.xmcof * (delmtemp*delmtemp*delmtemp - p.delmo)
		temp := delomg + delm
		mm = xmdf + temp
		argpm = argpdf - temp
		t3 := t2 * t
		t4 := t3 * t
		tempa = tempa - p.d2*t2 - p.d3*t3 - p.d4*t4
		tempe += p.bstar * p.cc5 * (math.Sin(mm) - p.sinmao)
		templ += p.t3cof*t3 + t4*(p.t4cof+t*p.t5cof)
	}

	nm := p.noUnkozai
	em := p.ecco
	inclm := p.inclo
	if p.deep != nil {
		em, inclm, argpm, nodem, mm, nm = p.deep.secular(t, em, inclm, argpm, nodem, mm)
	}

	if nm <= 0.0 {
		return fail(MeanMotionNonPositive, nm)
	}
	am := math.Pow(g.xke/nm, x2o3) * tempa * tempa
	// Once drag has pulled the mean semi-major axis inside the Earth the
	// orbit stays decayed; tempa changes sign later and would revive it.
	if tempa <= 0.0 || am < 1.0 {
		return fail(SatelliteDecayed, am)
	}
	nm = g.xke / math.Pow(am, 1.5)
	em -= tempe

	if em >= 1.0 || em < -0.001 {
		return fail(MeanEccentricityOutOfRange, em)
	}
	if em < 1.0e-6 {
		em = 1.0e-6
	}
	mm += p.noUnkozai * templ
	xlm := mm + argpm + nodem
	nodem = math.Mod(nodem, twoPi)
	argpm = math.Mod(argpm, twoPi)
	xlm = math.Mod(xlm, twoPi)
	mm = math.Mod(xlm-argpm-nodem, twoPi)

	sinim := math.Sin(inclm)
	cosim := math.Cos(inclm)

	// Lunar-solar periodics.
	ep := em
	xincp := inclm
	argpp := argpm
	nodep := nodem
	mp := mm
	sinip := sinim
	cosip := cosim
	aycof, xlcof := p.aycof, p.xlcof
	con41, x1mth2, x7thm1 := p.con41, p.x1mth2, p.x7thm1
	if p.deep != nil {
		ep, xincp, nodep, argpp, mp = p.deep.periodics(t, ep, xincp, nodep, argpp, mp)
		if xincp < 0.0 {
			xincp = -xincp
			nodep += math.Pi
			argpp -= math.Pi
		}
		if ep < 0.0 || ep > 1.0 {
			return fail(PerturbedEccentricityOutOfRange, ep)
		}

		sinip = math.Sin(xincp)
		cosip = math.Cos(xincp)
		aycof = -0.5 * g.j3oj2 * sinip
		xlcof = longPeriodXlcof(g.j3oj2, sinip, cosip)
	}

	// Long period periodics.
	axnl := ep * math.Cos(argpp)
	temp := 1.0 / (am * (1.0 - ep*ep))
	aynl := ep*math.Sin(argpp) + temp*aycof
	xl := mp + argpp + nodep + temp*xlcof*axnl

	// Kepler's equation.
	u := math.Mod(xl-nodep, twoPi)
	eo1 := u
	tem5 := 9999.9
	var sineo1, coseo1 float64
	for ktr := 1; math.Abs(tem5) >= 1.0e-12 && ktr <= 10; ktr++ {
		sineo1 = math.Sin(eo1)
		coseo1 = math.Cos(eo1)
		tem5 = 1.0 - coseo1*axnl - sineo1*aynl
		tem5 = (u - aynl*coseo1 + axnl*sineo1 - eo1) / tem5
		if math.Abs(tem5) >= 0.95 {
			tem5 = math.Copysign(0.95, tem5)
		}
		eo1 += tem5
	}

	// Short period periodics.
	ecose := axnl*coseo1 + aynl*sineo1
	esine := axnl*sineo1 - aynl*coseo1
	el2 := axnl*axnl + aynl*aynl
	pl := am * (1.0 - el2)
	if pl < 0.0 {
		return fail(SemiLatusRectumNegative, pl)
	}

	rl := am * (1.0 - ecose)
	rdotl := math.Sqrt(am) * esine / rl
	rvdotl := math.Sqrt(pl) / rl
	betal := math.Sqrt(1.0 - el2)
	temp = esine / (1.0 + betal)
	sinu := am / rl * (sineo1 - aynl - axnl*temp)
	cosu := am / rl * (coseo1 - axnl + aynl*temp)
	su := math.Atan2(sinu, cosu)
	sin2u := (cosu + cosu) * sinu
	cos2u := 1.0 - 2.0*sinu*sinu
	temp = 1.0 / pl
	temp1 := 0.5 * g.J2 * temp
	temp2 := temp1 * temp

	if p.deep != nil {
		cosisq := cosip * cosip
		con41 = 3.0*cosisq - 1.0
		x1mth2 = 1.0 - cosisq
		x7thm1 = 7.0*cosisq - 1.0
	}

	mrt := rl*(1.0-1.5*temp2*betal*con41) + 0.5*temp1*x1mth2*cos2u
	su -= 0.25 * temp2 * x7thm1 * sin2u
	xnode := nodep + 1.5*temp2*cosip*sin2u
	xinc := xincp + 1.5*temp2*cosip*sinip*cos2u
	mvt := rdotl - nm*temp1*x1mth2*sin2u/g.xke
	rvdot := rvdotl + nm*temp1*(x1mth2*cos2u+1.5*con41)/g.xke

	if mrt < 1.0 {
		return fail(SatelliteDecayed, mrt)
	}

	// Orientation vectors.
	sinsu, cossu := math.Sin(su), math.Cos(su)
	snod, cnod := math.Sin(xnode), math.Cos(xnode)
	sini, cosi := math.Sin(xinc), math.Cos(xinc)
	xmx := -snod * cosi
	xmy := cnod * cosi
	ux := xmx*sinsu + cnod*cossu
	uy := xmy*sinsu + snod*cossu
	uz := sini * sinsu
	vx := xmx*cossu - cnod*sinsu
	vy := xmy*cossu - snod*sinsu
	vz := sini * cossu

	rk := mrt * g.Radius
	vk := g.kmPerSec()
	r := geodesy.Vec3{X: rk * ux, Y: rk * uy, Z: rk * uz}
	v := geodesy.Vec3{
		X: (mvt*ux + rvdot*vx) * vk,
		Y: (mvt*uy + rvdot*vy) * vk,
		Z: (mvt*uz + rvdot*vz) * vk,
	}
	return r, v, nil
}
