package sgp4

import "math"

// Lunar and solar constants of the deep-space theory.
const (
	zes    = 0.01675
	zel    = 0.05490
	zns    = 1.19459e-5
	znl    = 1.5835218e-4
	c1ss   = 2.9864797e-6
	c1l    = 4.7968065e-7
	zsinis = 0.39785416
	zcosis = 0.91744867
	zcosgs = 0.1945905
	zsings = -0.98088458

	// Earth rotation rate in radians per minute.
	rptim = 4.37526908801129966e-3
)

// Resonance states.
const (
	resonanceNone = iota
	resonanceSynchronous
	resonanceHalfDay
)

// deepSpace holds the SDP4 coefficients computed once at initialisation.
type deepSpace struct {
	// Lunar-solar periodic coefficients.
	e3, ee2, se2, se3                   float64
	sgh2, sgh3, sgh4, sh2, sh3          float64
	si2, si3, sl2, sl3, sl4             float64
	xgh2, xgh3, xgh4, xh2, xh3          float64
	xi2, xi3, xl2, xl3, xl4, zmol, zmos float64

	// Secular rates.
	dedt, didt, dmdt, dnodt, domdt float64

	// Resonance terms.
	irez                                    int
	d2201, d2211, d3210, d3222, d4410       float64
	d4422, d5220, d5232, d5421, d5433       float64
	del1, del2, del3, xfact, xlamo          float64
	gsto, argpo, argpdot, no                float64
}

// newDeepSpace runs the Vallado dscom and dsinit steps for p.
func newDeepSpace(p *Propagator, eccsq, xpidot float64) *deepSpace {
	ds := &deepSpace{
		gsto:    p.gsto,
		argpo:   p.argpo,
		argpdot: p.argpdot,
		no:      p.noUnkozai,
	}

	// Days since 1950 Jan 0.0 UT.
	epoch := float64(p.epoch.Day-2433281) + p.epoch.Frac - 0.5

	// dscom
	nm := p.noUnkozai
	em := p.ecco
	snodm := math.Sin(p.nodeo)
	cnodm := math.Cos(p.nodeo)
	sinomm := math.Sin(p.argpo)
	cosomm := math.Cos(p.argpo)
	sinim := math.Sin(p.inclo)
	cosim := math.Cos(p.inclo)
	emsq := em * em
	betasq := 1.0 - emsq
	rtemsq := math.Sqrt(betasq)

	day := epoch + 18261.5
	xnodce := math.Mod(4.5236020-9.2422029e-4*day, twoPi)
	stem := math.Sin(xnodce)
	ctem := math.Cos(xnodce)
	zcosil := 0.91375164 - 0.03568096*ctem
	zsinil := math.Sqrt(1.0 - zcosil*zcosil)
	zsinhl := 0.089683511 * stem / zsinil
	zcoshl := math.Sqrt(1.0 - zsinhl*zsinhl)
	gam := 5.8351514 + 0.0019443680*day
	zx := 0.39785416 * stem / zsinil
	zy := zcoshl*ctem + 0.91744867*zsinhl*stem
	zx = math.Atan2(zx, zy)
	zx = gam + zx - xnodce
	zcosgl := math.Cos(zx)
	zsingl := math.Sin(zx)

	// Solar terms are evaluated first, then lunar.
	zcosg, zsing := zcosgs, zsings
	zcosi, zsini := zcosis, zsinis
	zcosh, zsinh := cnodm, snodm
	cc := c1ss
	xnoi := 1.0 / nm

	var s, ss [8]float64
	var z, sz [4][4]float64
	for lsflg := 1; lsflg <= 2; lsflg++ {
		a1 := zcosg*zcosh + zsing*zcosi*zsinh
		a3 := -zsing*zcosh + zcosg*zcosi*zsinh
		a7 := -zcosg*zsinh + zsing*zcosi*zcosh
		a8 := zsing * zsini
		a9 := zsing*zsinh + zcosg*zcosi*zcosh
		a10 := zcosg * zsini
		a2 := cosim*a7 + sinim*a8
		a4 := cosim*a9 + sinim*a10
		a5 := -sinim*a7 + cosim*a8
		a6 := -sinim*a9 + cosim*a10

		x1 := a1*cosomm + a2*sinomm
		x2 := a3*cosomm + a4*sinomm
		x3 := -a1*sinomm + a2*cosomm
		x4 := -a3*sinomm + a4*cosomm
		x5 := a5 * sinomm
		x6 := a6 * sinomm
		x7 := a5 * cosomm
		x8 := a6 * cosomm

		z[3][1] = 12.0*x1*x1 - 3.0*x3*x3
		z[3][2] = 24.0*x1*x2 - 6.0*x3*x4
		z[3][3] = 12.0*x2*x2 - 3.0*x4*x4
		z1 := 3.0*(a1*a1+a2*a2) + z[3][1]*emsq
		z2 := 6.0*(a1*a3+a2*a4) + z[3][2]*emsq
		z3 := 3.0*(a3*a3+a4*a4) + z[3][3]*emsq
		z[1][1] = -6.0*a1*a5 + emsq*(-24.0*x1*x7-6.0*x3*x5)
		z[1][2] = -6.0*(a1*a6+a3*a5) + emsq*(-24.0*(x2*x7+x1*x8)-6.0*(x3*x6+x4*x5))
		z[1][3] = -6.0*a3*a6 + emsq*(-24.0*x2*x8-6.0*x4*x6)
		z[2][1] = 6.0*a2*a5 + emsq*(24.0*x1*x5-6.0*x3*x7)
		z[2][2] = 6.0*(a4*a5+a2*a6) + emsq*(24.0*(x2*x5+x1*x6)-6.0*(x4*x7+x3*x8))
		z[2][3] = 6.0*a4*a6 + emsq*(24.0*x2*x6-6.0*x4*x8)
		z[0][1] = z1 + z1 + betasq*z[3][1]
		z[0][2] = z2 + z2 + betasq*z[3][2]
		z[0][3] = z3 + z3 + betasq*z[3][3]

		s[3] = cc * xnoi
		s[2] = -0.5 * s[3] / rtemsq
		s[4] = s[3] * rtemsq
		s[1] = -15.0 * em * s[4]
		s[5] = x1*x3 + x2*x4
		s[6] = x2*x3 + x1*x4
		s[7] = x2*x4 - x1*x3

		if lsflg == 1 {
			ss, sz = s, z
			zcosg, zsing = zcosgl, zsingl
			zcosi, zsini = zcosil, zsinil
			zcosh = zcoshl*cnodm + zsinhl*snodm
			zsinh = snodm*zcoshl - cnodm*zsinhl
			cc = c1l
		}
	}

	ds.zmol = math.Mod(4.7199672+0.22997150*day-gam, twoPi)
	ds.zmos = math.Mod(6.2565837+0.017201977*day, twoPi)

	// z[0][k] is z_k, z[i][j] is z_ij for i,j in 1..3.
	ds.se2 = 2.0 * ss[1] * ss[6]
	ds.se3 = 2.0 * ss[1] * ss[7]
	ds.si2 = 2.0 * ss[2] * sz[1][2]
	ds.si3 = 2.0 * ss[2] * (sz[1][3] - sz[1][1])
	ds.sl2 = -2.0 * ss[3] * sz[0][2]
	ds.sl3 = -2.0 * ss[3] * (sz[0][3] - sz[0][1])
	ds.sl4 = -2.0 * ss[3] * (-21.0 - 9.0*emsq) * zes
	ds.sgh2 = 2.0 * ss[4] * sz[3][2]
	ds.sgh3 = 2.0 * ss[4] * (sz[3][3] - sz[3][1])
	ds.sgh4 = -18.0 * ss[4] * zes
	ds.sh2 = -2.0 * ss[2] * sz[2][2]
	ds.sh3 = -2.0 * ss[2] * (sz[2][3] - sz[2][1])

	ds.ee2 = 2.0 * s[1] * s[6]
	ds.e3 = 2.0 * s[1] * s[7]
	ds.xi2 = 2.0 * s[2] * z[1][2]
	ds.xi3 = 2.0 * s[2] * (z[1][3] - z[1][1])
	ds.xl2 = -2.0 * s[3] * z[0][2]
	ds.xl3 = -2.0 * s[3] * (z[0][3] - z[0][1])
	ds.xl4 = -2.0 * s[3] * (-21.0 - 9.0*emsq) * zel
	ds.xgh2 = 2.0 * s[4] * z[3][2]
	ds.xgh3 = 2.0 * s[4] * (z[3][3] - z[3][1])
	ds.xgh4 = -18.0 * s[4] * zel
	ds.xh2 = -2.0 * s[2] * z[2][2]
	ds.xh3 = -2.0 * s[2] * (z[2][3] - z[2][1])

	ds.initSecular(p, sinim, cosim, emsq, s, ss, z, sz)
	ds.initResonance(p, nm, em, emsq, eccsq, sinim, cosim, xpidot)
	return ds
}

// initSecular computes the lunar-solar secular rates (first half of dsinit).
func (ds *deepSpace) initSecular(p *Propagator, sinim, cosim, emsq float64, s, ss [8]float64, z, sz [4][4]float64) {
	const inclLimit = 5.2359877e-2

	ses := ss[1] * zns * ss[5]
	sis := ss[2] * zns * (sz[1][1] + sz[1][3])
	sls := -zns * ss[3] * (sz[0][1] + sz[0][3] - 14.0 - 6.0*emsq)
	sghs := ss[4] * zns * (sz[3][1] + sz[3][3] - 6.0)
	shs := -zns * ss[2] * (sz[2][1] + sz[2][3])
	if p.inclo < inclLimit || p.inclo > math.Pi-inclLimit {
		shs = 0.0
	}
	if sinim != 0.0 {
		shs /= sinim
	}
	sgs := sghs - cosim*shs

	ds.dedt = ses + s[1]*znl*s[5]
	ds.didt = sis + s[2]*znl*(z[1][1]+z[1][3])
	ds.dmdt = sls - znl*s[3]*(z[0][1]+z[0][3]-14.0-6.0*emsq)
	sghl := s[4] * znl * (z[3][1] + z[3][3] - 6.0)
	shll := -znl * s[2] * (z[2][1] + z[2][3])
	if p.inclo < inclLimit || p.inclo > math.Pi-inclLimit {
		shll = 0.0
	}
	ds.domdt = sgs + sghl
	ds.dnodt = shs
	if sinim != 0.0 {
		ds.domdt -= cosim / sinim * shll
		ds.dnodt += shll / sinim
	}
}

// initResonance sets up the 12 h and 24 h resonance integrator (second half
// of dsinit).
func (ds *deepSpace) initResonance(p *Propagator, nm, em, emsq, eccsq, sinim, cosim, xpidot float64) {
	const (
		q22    = 1.7891679e-6
		q31    = 2.1460748e-6
		q33    = 2.2123015e-7
		root22 = 1.7891679e-6
		root44 = 7.3636953e-9
		root54 = 2.1765803e-9
		root32 = 3.7393792e-7
		root52 = 1.1428639e-7
	)

	switch {
	case nm < 0.0052359877 && nm > 0.0034906585:
		ds.irez = resonanceSynchronous
	case nm >= 8.26e-3 && nm <= 9.24e-3 && em >= 0.5:
		ds.irez = resonanceHalfDay
	default:
		return
	}

	theta := math.Mod(ds.gsto, twoPi)
	aonv := math.Pow(nm/p.grav.xke, x2o3)

	if ds.irez == resonanceHalfDay {
		cosisq := cosim * cosim
		em := p.ecco
		emsq := eccsq
		eoc := em * emsq
		g201 := -0.306 - (em-0.64)*0.440

		var g211, g310, g322, g410, g422, g520, g521, g532, g533 float64
		if em <= 0.65 {
			g211 = 3.616 - 13.2470*em + 16.2900*emsq
			g310 = -19.302 + 117.3900*em - 228.4190*emsq + 156.5910*eoc
			g322 = -18.9068 + 109.7927*em - 214.6334*emsq + 146.5816*eoc
			g410 = -41.122 + 242.6940*em - 471.0940*emsq + 313.9530*eoc
			g422 = -146.407 + 841.8800*em - 1629.014*emsq + 1083.4350*eoc
			g520 = -532.114 + 3017.977*em - 5740.032*emsq + 3708.2760*eoc
		} else {
			g211 = -72.099 + 331.819*em - 508.738*emsq + 266.724*eoc
			g310 = -346.844 + 1582.851*em - 2415.925*emsq + 1246.113*eoc
			g322 = -342.585 + 1554.908*em - 2366.899*emsq + 1215.972*eoc
			g410 = -1052.797 + 4758.686*em - 7193.992*emsq + 3651.957*eoc
			g422 = -3581.690 + 16178.110*em - 24462.770*emsq + 12422.520*eoc
			if em > 0.715 {
				g520 = -5149.66 + 29936.92*em - 54087.36*emsq + 31324.56*eoc
			} else {
				g520 = 1464.74 - 4664.75*em + 3763.64*emsq
			}
		}
		if em < 0.7 {
			g533 = -919.22770 + 4988.6100*em - 9064.7700*emsq + 5542.21*eoc
			g521 = -822.71072 + 4568.6173*em - 8491.4146*emsq + 5337.524*eoc
			g532 = -853.66600 + 4690.2500*em - 8624.7700*emsq + 5341.4*eoc
		} else {
			g533 = -37995.780 + 161616.52*em - 229838.20*emsq + 109377.94*eoc
			g521 = -51752.104 + 218913.95*em - 309468.16*emsq + 146349.42*eoc
			g532 = -40023.880 + 170470.89*em - 242699.48*emsq + 115605.82*eoc
		}

		sini2 := sinim * sinim
		f220 := 0.75 * (1.0 + 2.0*cosim + cosisq)
		f221 := 1.5 * sini2
		f321 := 1.875 * sinim * (1.0 - 2.0*cosim - 3.0*cosisq)
		f322 := -1.875 * sinim * (1.0 + 2.0*cosim - 3.0*cosisq)
		f441 := 35.0 * sini2 * f220
		f442 := 39.3750 * sini2 * sini2
		f522 := 9.84375 * sinim * (sini2*(1.0-2.0*cosim-5.0*cosisq) +
			0.33333333*(-2.0+4.0*cosim+6.0*cosisq))
		f523 := sinim * (4.92187512*sini2*(-2.0-4.0*cosim+10.0*cosisq) +
			6.56250012*(1.0+2.0*cosim-3.0*cosisq))
		f542 := 29.53125 * sinim * (2.0 - 8.0*cosim + cosisq*(-12.0+8.0*cosim+10.0*cosisq))
		f543 := 29.53125 * sinim * (-2.0 - 8.0*cosim + cosisq*(12.0+8.0*cosim-10.0*cosisq))

		xno2 := nm * nm
		ainv2 := aonv * aonv
		temp1 := 3.0 * xno2 * ainv2
		temp := temp1 * root22
		ds.d2201 = temp * f220 * g201
		ds.d2211 = temp * f221 * g211
		temp1 *= aonv
		temp = temp1 * root32
		ds.d3210 = temp * f321 * g310
		ds.d3222 = temp * f322 * g322
		temp1 *= aonv
		temp = 2.0 * temp1 * root44
		ds.d4410 = temp * f441 * g410
		ds.d4422 = temp * f442 * g422
		temp1 *= aonv
		temp = temp1 * root52
		ds.d5220 = temp * f522 * g520
		ds.d5232 = temp * f523 * g532
		temp = 2.0 * temp1 * root54
		ds.d5421 = temp * f542 * g521
		ds.d5433 = temp * f543 * g533

		ds.xlamo = math.Mod(p.mo+p.nodeo+p.nodeo-theta-theta, twoPi)
		ds.xfact = p.mdot + ds.dmdt + 2.0*(p.nodedot+ds.dnodt-rptim) - p.noUnkozai
		return
	}

	g200 := 1.0 + emsq*(-2.5+0.8125*emsq)
	g310 := 1.0 + 2.0*emsq
	g300 := 1.0 + emsq*(-6.0+6.60937*emsq)
	f220 := 0.75 * (1.0 + cosim) * (1.0 + cosim)
	f311 := 0.9375*sinim*sinim*(1.0+3.0*cosim) - 0.75*(1.0+cosim)
	f330 := 1.0 + cosim
	f330 = 1.875 * f330 * f330 * f330
	ds.del1 = 3.0 * nm * nm * aonv * aonv
	ds.del2 = 2.0 * ds.del1 * f220 * g200 * q22
	ds.del3 = 3.0 * ds.del1 * f330 * g300 * q33 * aonv
	ds.del1 = ds.del1 * f311 * g310 * q31 * aonv
	ds.xlamo = math.Mod(p.mo+p.nodeo+p.argpo-theta, twoPi)
	ds.xfact = p.mdot + xpidot - rptim + ds.dmdt + ds.domdt + ds.dnodt - p.noUnkozai
}

// secular applies the deep-space secular rates and, for resonant orbits,
// integrates mean motion and longitude from epoch to t (Vallado dspace).
// The integrator always starts from epoch so no state outlives the call.
func (ds *deepSpace) secular(t, em, inclm, argpm, nodem, mm float64) (float64, float64, float64, float64, float64, float64) {
	const (
		fasx2 = 0.13130908
		fasx4 = 2.8843198
		fasx6 = 0.37448087
		g22   = 5.7686396
		g32   = 0.95240898
		g44   = 1.8014998
		g52   = 1.0508330
		g54   = 4.4108898
		stepp = 720.0
		stepn = -720.0
		step2 = 259200.0
	)

	theta := math.Mod(ds.gsto+t*rptim, twoPi)
	em += ds.dedt * t
	inclm += ds.didt * t
	argpm += ds.domdt * t
	nodem += ds.dnodt * t
	mm += ds.dmdt * t
	nm := ds.no

	if ds.irez == resonanceNone {
		return em, inclm, argpm, nodem, mm, nm
	}

	atime := 0.0
	xni := ds.no
	xli := ds.xlamo
	delt := stepp
	if t <= 0 {
		delt = stepn
	}

	var xndt, xldot, xnddt, ft float64
	for {
		if ds.irez != resonanceHalfDay {
			xndt = ds.del1*math.Sin(xli-fasx2) + ds.del2*math.Sin(2.0*(xli-fasx4)) +
				ds.del3*math.Sin(3.0*(xli-fasx6))
			xldot = xni + ds.xfact
			xnddt = ds.del1*math.Cos(xli-fasx2) + 2.0*ds.del2*math.Cos(2.0*(xli-fasx4)) +
				3.0*ds.del3*math.Cos(3.0*(xli-fasx6))
			xnddt *= xldot
		} else {
			xomi := ds.argpo + ds.argpdot*atime
			x2omi := xomi + xomi
			x2li := xli + xli
			xndt = ds.d2201*math.Sin(x2omi+xli-g22) + ds.d2211*math.Sin(xli-g22) +
				ds.d3210*math.Sin(xomi+xli-g32) + ds.d3222*math.Sin(-xomi+xli-g32) +
				ds.d4410*math.Sin(x2omi+x2li-g44) + ds.d4422*math.Sin(x2li-g44) +
				ds.d5220*math.Sin(xomi+xli-g52) + ds.d5232*math.Sin(-xomi+xli-g52) +
				ds.d5421*math.Sin(xomi+x2li-g54) + ds.d5433*math.Sin(-xomi+x2li-g54)
			xldot = xni + ds.xfact
			xnddt = ds.d2201*math.Cos(x2omi+xli-g22) + ds.d2211*math.Cos(xli-g22) +
				ds.d3210*math.Cos(xomi+xli-g32) + ds.d3222*math.Cos(-xomi+xli-g32) +
				ds.d5220*math.Cos(xomi+xli-g52) + ds.d5232*math.Cos(-xomi+xli-g52) +
				2.0*(ds.d4410*math.Cos(x2omi+x2li-g44)+ds.d4422*math.Cos(x2li-g44)+
					ds.d5421*math.Cos(xomi+x2li-g54)+ds.d5433*math.Cos(-xomi+x2li-g54))
			xnddt *= xldot
		}

		if math.Abs(t-atime) < stepp {
			ft = t - atime
			break
		}
		xli += xldot*delt + xndt*step2
		xni += xndt*delt + xnddt*step2
		atime += delt
	}

	nm = xni + xndt*ft + xnddt*ft*ft*0.5
	xl := xli + xldot*ft + xndt*ft*ft*0.5
	if ds.irez != resonanceSynchronous {
		mm = xl - 2.0*nodem + 2.0*theta
	} else {
		mm = xl - nodem - argpm + theta
	}
	return em, inclm, argpm, nodem, mm, nm
}

// periodics adds the lunar-solar periodic terms at t (Vallado dpper in
// propagation mode, with the Lyddane modification at low inclination).
func (ds *deepSpace) periodics(t, ep, inclp, nodep, argpp, mp float64) (float64, float64, float64, float64, float64) {
	zm := ds.zmos + zns*t
	zf := zm + 2.0*zes*math.Sin(zm)
	sinzf := math.Sin(zf)
	f2 := 0.5*sinzf*sinzf - 0.25
	f3 := -0.5 * sinzf * math.Cos(zf)
	ses := ds.se2*f2 + ds.se3*f3
	sis := ds.si2*f2 + ds.si3*f3
	sls := ds.sl2*f2 + ds.sl3*f3 + ds.sl4*sinzf
	sghs := ds.sgh2*f2 + ds.sgh3*f3 + ds.sgh4*sinzf
	shs := ds.sh2*f2 + ds.sh3*f3

	zm = ds.zmol + znl*t
	zf = zm + 2.0*zel*math.Sin(zm)
	sinzf = math.Sin(zf)
	f2 = 0.5*sinzf*sinzf - 0.25
	f3 = -0.5 * sinzf * math.Cos(zf)
	sel := ds.ee2*f2 + ds.e3*f3
	sil := ds.xi2*f2 + ds.xi3*f3
	sll := ds.xl2*f2 + ds.xl3*f3 + ds.xl4*sinzf
	sghl := ds.xgh2*f2 + ds.xgh3*f3 + ds.xgh4*sinzf
	shll := ds.xh2*f2 + ds.xh3*f3

	pe := ses + sel
	pinc := sis + sil
	pl := sls + sll
	pgh := sghs + sghl
	ph := shs + shll

	inclp += pinc
	ep += pe
	sinip := math.Sin(inclp)
	cosip := math.Cos(inclp)

	if inclp >= 0.2 {
		ph /= sinip
		pgh -= cosip * ph
		argpp += pgh
		nodep += ph
		mp += pl
		return ep, inclp, nodep, argpp, mp
	}

	// Lyddane modification for low inclination.
	sinop := math.Sin(nodep)
	cosop := math.Cos(nodep)
	alfdp := sinip * sinop
	betdp := sinip * cosop
	dalf := ph*cosop + pinc*cosip*sinop
	dbet := -ph*sinop + pinc*cosip*cosop
	alfdp += dalf
	betdp += dbet
	nodep = math.Mod(nodep, twoPi)
	xls := mp + argpp + cosip*nodep
	dls := pl + pgh - pinc*nodep*sinip
	xls += dls
	xnoh := nodep
	nodep = math.Atan2(alfdp, betdp)
	if math.Abs(xnoh-nodep) > math.Pi {
		if nodep < xnoh {
			nodep += twoPi
		} else {
			nodep -= twoPi
		}
	}
	mp += pl
	argpp = xls - mp - cosip*nodep
	return ep, inclp, nodep, argpp, mp
}
