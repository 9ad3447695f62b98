// Package timesys converts calendar time to the split Julian date used by the
// propagator and enumerates evenly spaced sample instants over a time window.
//
// An Instant keeps the whole Julian day and the day fraction apart so that
// sub-second resolution survives day counts in the millions. Both parts are
// derived from integer nanoseconds, never from an accumulated float.
package timesys

import (
	"math"
	"time"
)

const (
	nanosPerDay  = int64(86400) * int64(time.Second)
	nanosHalfDay = nanosPerDay / 2

	// unixEpochDay and unixEpochFrac locate 1970-01-01T00:00:00Z (JD 2440587.5).
	unixEpochDay  = 2440587
	unixEpochFrac = 0.5

	// J2000 is the Julian date of 2000-01-01T12:00:00.
	J2000 = 2451545.0

	MinutesPerDay = 1440.0
)

// Instant is a point in continuous time expressed as a Julian date split into
// a whole day and a fraction in [0, 1). JD = Day + Frac.
type Instant struct {
	Day  int64
	Frac float64
}

// FromTime converts t (any location, interpreted in UTC) to an Instant.
func FromTime(t time.Time) Instant {
	t = t.UTC()
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	nanos := int64(hh)*int64(time.Hour) +
		int64(mm)*int64(time.Minute) +
		int64(ss)*int64(time.Second) +
		int64(t.Nanosecond())

	// JD at 0h of the civil date is jdn-0.5; shift by half a day so the
	// integer part lands on the Julian day boundary at noon.
	jdn := civilToJDN(y, int(m), d)
	shifted := nanos + nanosHalfDay
	return Instant{
		Day:  jdn - 1 + shifted/nanosPerDay,
		Frac: float64(shifted%nanosPerDay) / float64(nanosPerDay),
	}
}

// ToJulian returns the whole-day and fractional-day parts of t's Julian date.
func ToJulian(t time.Time) (int64, float64) {
	in := FromTime(t)
	return in.Day, in.Frac
}

// FromEpoch builds the Instant of a two-line element epoch: a four-digit
// year and a 1-based day of year with fraction (day 1.5 is Jan 1, 12:00).
func FromEpoch(year int, dayOfYear float64) Instant {
	whole := math.Floor(dayOfYear)
	f := dayOfYear - whole
	base := civilToJDN(year, 1, 1) + int64(whole) - 1
	if f >= 0.5 {
		return Instant{Day: base, Frac: f - 0.5}
	}
	return Instant{Day: base - 1, Frac: f + 0.5}
}

// JD returns the Julian date as a single float. Precision is limited to
// roughly 20 microseconds at current epochs; use Day/Frac where it matters.
func (in Instant) JD() float64 {
	return float64(in.Day) + in.Frac
}

// Time converts the Instant back to a UTC time, rounded to the nanosecond.
func (in Instant) Time() time.Time {
	fracNanos := int64(math.Round(in.Frac * float64(nanosPerDay)))
	days := in.Day - unixEpochDay
	// Frac carries the noon offset; remove the 0.5 day of the Unix epoch.
	secs := days*86400 - int64(unixEpochFrac*86400)
	secs += fracNanos / int64(time.Second)
	return time.Unix(secs, fracNanos%int64(time.Second)).UTC()
}

// Sub returns in - other in minutes, the unit SGP4 uses for time since epoch.
func (in Instant) Sub(other Instant) float64 {
	return (float64(in.Day-other.Day) + (in.Frac - other.Frac)) * MinutesPerDay
}

// AddMinutes returns the instant m minutes after in (m may be negative).
func (in Instant) AddMinutes(m float64) Instant {
	d := m / MinutesPerDay
	whole := math.Floor(d)
	out := Instant{Day: in.Day + int64(whole), Frac: in.Frac + (d - whole)}
	if out.Frac >= 1 {
		out.Day++
		out.Frac--
	}
	return out
}

// DaysSince returns in - other in days.
func (in Instant) DaysSince(other Instant) float64 {
	return float64(in.Day-other.Day) + (in.Frac - other.Frac)
}

// Compare returns -1, 0 or +1 depending on whether in is before, equal to or
// after other.
func (in Instant) Compare(other Instant) int {
	switch {
	case in.Day < other.Day:
		return -1
	case in.Day > other.Day:
		return 1
	case in.Frac < other.Frac:
		return -1
	case in.Frac > other.Frac:
		return 1
	}
	return 0
}

// Before reports whether in is strictly earlier than other.
func (in Instant) Before(other Instant) bool {
	return in.Compare(other) < 0
}

// civilToJDN returns the Julian day number (noon-based) of a proleptic
// Gregorian calendar date.
func civilToJDN(year, month, day int) int64 {
	a := floorDiv(14-int64(month), 12)
	y := int64(year) + 4800 - a
	m := int64(month) + 12*a - 3
	return int64(day) + floorDiv(153*m+2, 5) + 365*y +
		floorDiv(y, 4) - floorDiv(y, 100) + floorDiv(y, 400) - 32045
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
