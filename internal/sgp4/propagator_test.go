package sgp4

import (
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	aksgp4 "github.com/akhenakh/sgp4"
	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/satcal/internal/geodesy"
	"github.com/large-farva/satcal/internal/timesys"
	"github.com/large-farva/satcal/internal/tle"
)

// Element sets used across the tests. Vanguard 1 and the Molniya 08195 are
// from the Vallado verification set; the rest are synthetic orbits built to
// exercise one branch each.
const (
	vanguard1 = "1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753"
	vanguard2 = "2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667"

	molniya1 = "1 08195U 75081A   06176.33215444  .00000099  00000-0  11873-3 0   813"
	molniya2 = "2 08195  64.1586 279.0717 6877146 264.7651  20.2257  2.00491383225656"

	iss1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	iss2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"

	gps1 = "1 24876U 97035A   24190.50000000 -.00000020  00000-0  00000+0 0  9994"
	gps2 = "2 24876  55.5000 150.0000 0050000  60.0000 300.0000  2.00561000 20000"

	geo1 = "1 99002U 20001A   24190.50000000 -.00000100  00000-0  00000+0 0  9995"
	geo2 = "2 99002   0.0500  90.0000 0002000 270.0000  45.0000  1.00270000 10007"

	decaying1 = "1 99001U 24001A   24190.50000000  .01000000  00000-0  20000-1 0  9991"
	decaying2 = "2 99001  51.6000 100.0000 0005000  90.0000 270.0000 15.90000000 10003"

	subOrbital1 = "1 99003U 24001B   24190.50000000  .00000000  00000-0  10000-3 0  9993"
	subOrbital2 = "2 99003  51.6000 100.0000 1000000  90.0000 270.0000 16.00000000 10003"
)

func mustParse(t *testing.T, line1, line2 string) *tle.ElementSet {
	t.Helper()
	es, err := tle.Parse(line1, line2)
	require.NoError(t, err)
	return es
}

func assertVec(t *testing.T, want, got geodesy.Vec3, tol float64, msgAndArgs ...any) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol, msgAndArgs...)
	assert.InDelta(t, want.Y, got.Y, tol, msgAndArgs...)
	assert.InDelta(t, want.Z, got.Z, tol, msgAndArgs...)
}

// Published Vallado verification output for catalog 00005.
func TestVanguardGolden(t *testing.T) {
	p := New(mustParse(t, vanguard1, vanguard2))
	require.False(t, p.IsDeepSpace())

	tests := []struct {
		tsince float64
		r      geodesy.Vec3
		v      geodesy.Vec3
	}{
		{0, geodesy.Vec3{X: 7022.46529266, Y: -1400.08296755, Z: 0.03995155}, geodesy.Vec3{X: 1.893841015, Y: 6.405893759, Z: 4.534807250}},
		{360, geodesy.Vec3{X: -7154.03120202, Y: -3783.17682504, Z: -3536.19412294}, geodesy.Vec3{X: 4.741887409, Y: -4.151817765, Z: -2.093935425}},
		{720, geodesy.Vec3{X: -7134.59340119, Y: 6531.68641334, Z: 3260.27186483}, geodesy.Vec3{X: -4.113793027, Y: -2.911922039, Z: -2.557327851}},
		{4320, geodesy.Vec3{X: -9060.47373569, Y: 4658.70952502, Z: 813.68673153}, geodesy.Vec3{X: -2.232832783, Y: -4.110453490, Z: -3.157345433}},
	}
	for _, tt := range tests {
		sv, err := p.PropagateMinutes(tt.tsince)
		require.NoError(t, err, "tsince=%v", tt.tsince)
		// Sub-metre position, sub-mm/s velocity.
		assertVec(t, tt.r, sv.Position, 1e-4, "position at tsince=%v", tt.tsince)
		assertVec(t, tt.v, sv.Velocity, 1e-7, "velocity at tsince=%v", tt.tsince)
	}
}

func TestVanguardGoldenViaInstant(t *testing.T) {
	es := mustParse(t, vanguard1, vanguard2)
	p := New(es)

	sv, err := p.Propagate(es.Epoch)
	require.NoError(t, err)
	assert.Equal(t, es.Epoch, sv.At)
	assertVec(t, geodesy.Vec3{X: 7022.46529266, Y: -1400.08296755, Z: 0.03995155}, sv.Position, 1e-4)
}

// Published Vallado verification output for 08195, a Molniya orbit in 12 h
// resonance.
func TestMolniyaGoldenAtEpoch(t *testing.T) {
	p := New(mustParse(t, molniya1, molniya2))
	require.True(t, p.IsDeepSpace())
	assert.Equal(t, resonanceHalfDay, p.deep.irez)

	sv, err := p.PropagateMinutes(0)
	require.NoError(t, err)
	assertVec(t, geodesy.Vec3{X: 2349.89483350, Y: -14785.93811562, Z: 0.02119378}, sv.Position, 1e-4)
	assertVec(t, geodesy.Vec3{X: 2.721488096, Y: -3.256811655, Z: 4.498416672}, sv.Velocity, 1e-7)
}

func TestDeepSpaceOrbitsStayOnShell(t *testing.T) {
	tests := []struct {
		name       string
		line1      string
		line2      string
		irez       int
		rmin, rmax float64
	}{
		{"gps no resonance", gps1, gps2, resonanceNone, 26300, 26800},
		{"geostationary synchronous resonance", geo1, geo2, resonanceSynchronous, 42100, 42230},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(mustParse(t, tt.line1, tt.line2))
			require.True(t, p.IsDeepSpace())
			assert.Equal(t, tt.irez, p.deep.irez)

			for tsince := -1440.0; tsince <= 10*1440; tsince += 37 {
				sv, err := p.PropagateMinutes(tsince)
				require.NoError(t, err, "tsince=%v", tsince)
				r := sv.Position.Norm()
				assert.True(t, r > tt.rmin && r < tt.rmax, "radius %.1f km at tsince=%v", r, tsince)
				require.True(t, sv.Velocity.IsFinite())
			}
		})
	}
}

func TestDecayScenario(t *testing.T) {
	es := mustParse(t, decaying1, decaying2)
	p := New(es)

	first := -1
	for minute := 0; minute <= 10*1440; minute++ {
		_, err := p.PropagateMinutes(float64(minute))
		if first < 0 {
			if err == nil {
				continue
			}
			first = minute
		}
		require.Error(t, err, "minute %d after decay at %d", minute, first)
		require.ErrorIs(t, err, SatelliteDecayed, "minute %d", minute)

		var pe *PropagationError
		require.True(t, errors.As(err, &pe))
		assert.True(t, pe.IsDecay())
		assert.Equal(t, float64(minute), pe.Tsince)
	}
	require.Positive(t, first, "orbit never decayed")
	assert.InDelta(t, 3465, first, 60, "decay near 2.4 days after epoch")
}

func TestSubOrbitalAtEpoch(t *testing.T) {
	p := New(mustParse(t, subOrbital1, subOrbital2))
	for _, tsince := range []float64{-60, 0, 60} {
		_, err := p.PropagateMinutes(tsince)
		require.ErrorIs(t, err, EpochElementsSubOrbital)
		assert.NotErrorIs(t, err, SatelliteDecayed)

		var pe *PropagationError
		require.True(t, errors.As(err, &pe))
		assert.True(t, pe.IsDecay())
		assert.Equal(t, 5, pe.Kind.Code())
	}
}

func TestNumericDegeneracyIsNotDecay(t *testing.T) {
	es := *mustParse(t, vanguard1, vanguard2)
	es.MeanMotion = 1e-9
	p := New(&es)
	_, err := p.PropagateMinutes(0)
	require.Error(t, err)

	var pe *PropagationError
	require.True(t, errors.As(err, &pe))
	assert.False(t, pe.IsDecay(), "got %s", pe.Kind)
}

func TestKindMetadata(t *testing.T) {
	kinds := []Kind{
		MeanEccentricityOutOfRange,
		MeanMotionNonPositive,
		PerturbedEccentricityOutOfRange,
		SemiLatusRectumNegative,
		EpochElementsSubOrbital,
		SatelliteDecayed,
	}
	seen := map[string]bool{}
	for i, k := range kinds {
		assert.Equal(t, i+1, k.Code())
		assert.NotEmpty(t, k.Description())
		assert.False(t, seen[k.String()], "duplicate name %s", k)
		seen[k.String()] = true
	}
	assert.False(t, SemiLatusRectumNegative.IsDecay())
	assert.True(t, SatelliteDecayed.IsDecay())

	err := error(&PropagationError{Kind: MeanMotionNonPositive, Tsince: 12.5, Value: -1})
	assert.ErrorIs(t, err, MeanMotionNonPositive)
	assert.NotErrorIs(t, err, MeanEccentricityOutOfRange)
	assert.Contains(t, err.Error(), "mean motion")
}

// The resonance integrator must not carry state between calls: results
// depend on the instant only, whatever the call order or goroutine.
func TestPropagateIsPureAndConcurrent(t *testing.T) {
	p := New(mustParse(t, molniya1, molniya2))

	times := make([]float64, 0, 64)
	for i := 0; i < 64; i++ {
		times = append(times, float64((i*733)%5000-1000))
	}
	want := make([]StateVector, len(times))
	for i, ts := range times {
		sv, err := p.PropagateMinutes(ts)
		require.NoError(t, err)
		want[i] = sv
	}

	// Reverse order on one goroutine.
	for i := len(times) - 1; i >= 0; i-- {
		sv, err := p.PropagateMinutes(times[i])
		require.NoError(t, err)
		assert.Equal(t, want[i], sv)
	}

	var wg sync.WaitGroup
	got := make([]StateVector, len(times))
	for i := range times {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sv, _ := p.PropagateMinutes(times[i])
			got[i] = sv
		}(i)
	}
	wg.Wait()
	assert.Equal(t, want, got)
}

func TestGravityByName(t *testing.T) {
	g, err := GravityByName("")
	require.NoError(t, err)
	assert.Equal(t, "wgs72", g.Name)

	g, err = GravityByName("WGS-84")
	require.NoError(t, err)
	assert.Equal(t, WGS84, g)

	_, err = GravityByName("egm96")
	assert.Error(t, err)

	// A different Earth model moves the answer, but only slightly.
	es := mustParse(t, vanguard1, vanguard2)
	a, err := New(es).PropagateMinutes(360)
	require.NoError(t, err)
	b, err := New(es, WithGravity(WGS84)).PropagateMinutes(360)
	require.NoError(t, err)
	d := a.Position.Sub(b.Position).Norm()
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, 5.0)
}

// wholeSecondEpoch moves the epoch of line 1 to noon of the same day and
// fixes up the checksum. go-satellite keeps its epoch in whole seconds, so
// both sides only see the same instants when the epoch has no fraction.
func wholeSecondEpoch(line1 string) string {
	b := []byte(line1)
	copy(b[23:32], ".50000000")
	s := string(b)
	return s[:68] + strconv.Itoa(tle.Checksum(s))
}

func TestWholeSecondEpoch(t *testing.T) {
	l1 := wholeSecondEpoch(vanguard1)
	es := mustParse(t, l1, vanguard2)
	assert.Equal(t, time.Date(2000, 6, 27, 12, 0, 0, 0, time.UTC), es.EpochTime())
	assert.Equal(t, vanguard1[:23], l1[:23])
	assert.Equal(t, vanguard1[32:68], l1[32:68])
}

// TestAgainstGoSatellite compares with go-satellite, an independent Go port
// of the same Vallado code, at whole-second instants from epoch.
func TestAgainstGoSatellite(t *testing.T) {
	days := func(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
	tests := []struct {
		name    string
		line1   string
		line2   string
		offsets []time.Duration
		tol     float64 // km
	}{
		{"near earth", wholeSecondEpoch(vanguard1), vanguard2, []time.Duration{0, 90 * time.Minute, days(1)}, 0.1},
		{"leo", wholeSecondEpoch(iss1), iss2, []time.Duration{0, 45 * time.Minute, 12 * time.Hour}, 0.1},
		{"deep space resonant", wholeSecondEpoch(molniya1), molniya2, []time.Duration{0, 6 * time.Hour, days(10)}, 0.1},
		{"half day resonant", gps1, gps2, []time.Duration{0, 12 * time.Hour, days(10)}, 0.1},
		{"synchronous", geo1, geo2, []time.Duration{0, days(1), days(10)}, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := mustParse(t, tt.line1, tt.line2)
			require.Zero(t, es.EpochTime().Nanosecond())
			p := New(es)
			ref := satellite.TLEToSat(tt.line1, tt.line2, satellite.GravityWGS72)

			base := es.EpochTime()
			for _, off := range tt.offsets {
				at := base.Add(off)
				sv, err := p.Propagate(timesys.FromTime(at))
				require.NoError(t, err)

				pos, _ := satellite.Propagate(ref, at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Minute(), at.Second())
				diff := sv.Position.Sub(geodesy.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}).Norm()
				assert.Less(t, diff, tt.tol, "offset %s: ours %+v, go-satellite %+v", off, sv.Position, pos)
			}
		})
	}
}

// TestAgainstAkhenakhAtEpoch checks the near-earth branch against the
// akhenakh/sgp4 port at epoch, where both reduce to the same osculating
// element conversion.
func TestAgainstAkhenakhAtEpoch(t *testing.T) {
	ref, err := aksgp4.ParseTLE(iss1 + "\n" + iss2)
	require.NoError(t, err)
	want, err := ref.FindPosition(0)
	require.NoError(t, err)

	sv, err := New(mustParse(t, iss1, iss2)).PropagateMinutes(0)
	require.NoError(t, err)

	diff := sv.Position.Sub(geodesy.Vec3{X: want.Position.X, Y: want.Position.Y, Z: want.Position.Z}).Norm()
	assert.Less(t, diff, 2.0, "ours %+v, akhenakh %+v", sv.Position, want.Position)
}

func TestPropagatedRadiusIsPhysical(t *testing.T) {
	p := New(mustParse(t, iss1, iss2))
	for ts := -720.0; ts <= 2880; ts += 11 {
		sv, err := p.PropagateMinutes(ts)
		require.NoError(t, err)
		r := sv.Position.Norm()
		require.False(t, math.IsNaN(r))
		assert.True(t, r > 6700 && r < 6760, "ISS radius %.1f km at %v", r, ts)
	}
}
