// Package tle parses and validates NORAD two-line element sets.
//
// Parsing is strict and column based. Structural problems (length, line
// number, checksum, catalog mismatch, unparsable fields) are reported as
// MalformedLine; values that parse but are not physical are reported as
// OutOfRange. Nothing is ever clamped into range.
package tle

import (
	"strconv"
	"strings"
	"time"

	"github.com/large-farva/satcal/internal/timesys"
)

// LineLength is the fixed width of both element lines, checksum included.
const LineLength = 69

// ElementSet is one parsed and validated two-line element set. Angles are
// in degrees and mean motion in revolutions per day, as written in the lines.
type ElementSet struct {
	Name           string
	CatalogNumber  int
	Classification string
	IntlDesignator string

	EpochYear int
	EpochDay  float64
	Epoch     timesys.Instant

	// MeanMotionDot is the first derivative of mean motion divided by two
	// (rev/day^2); MeanMotionDDot the second derivative divided by six.
	MeanMotionDot  float64
	MeanMotionDDot float64
	BStar          float64
	EphemerisType  int
	ElementNumber  int

	Inclination  float64
	RAAN         float64
	Eccentricity float64
	ArgPerigee   float64
	MeanAnomaly  float64
	MeanMotion   float64
	RevNumber    int

	Line1 string
	Line2 string
}

// EpochTime returns the element epoch as a UTC time.
func (e *ElementSet) EpochTime() time.Time {
	return e.Epoch.Time()
}

// Parse reads and validates a two-line element set.
func Parse(line1, line2 string) (*ElementSet, error) {
	l1 := trimLine(line1)
	l2 := trimLine(line2)
	if err := checkLine(l1, 1); err != nil {
		return nil, err
	}
	if err := checkLine(l2, 2); err != nil {
		return nil, err
	}

	es := &ElementSet{Line1: l1, Line2: l2}
	p := fieldParser{}

	es.CatalogNumber = p.catalog(1, l1[2:7])
	cat2 := p.catalog(2, l2[2:7])
	if p.err != nil {
		return nil, p.err
	}
	if es.CatalogNumber != cat2 {
		return nil, malformed(0, "catalog_number", l1[2:7]+"/"+l2[2:7], "catalog numbers differ between lines")
	}

	es.Classification = strings.TrimSpace(l1[7:8])
	es.IntlDesignator = strings.TrimSpace(l1[9:17])
	yy := p.integer(1, "epoch_year", l1[18:20])
	es.EpochDay = p.float(1, "epoch_day", l1[20:32])
	es.MeanMotionDot = p.float(1, "mean_motion_dot", l1[33:43])
	es.MeanMotionDDot = p.implied(1, "mean_motion_ddot", l1[44:52])
	es.BStar = p.implied(1, "bstar", l1[53:61])
	es.EphemerisType = p.optionalInt(1, "ephemeris_type", l1[62:63])
	es.ElementNumber = p.optionalInt(1, "element_number", l1[64:68])

	es.Inclination = p.float(2, "inclination", l2[8:16])
	es.RAAN = p.float(2, "raan", l2[17:25])
	es.Eccentricity = p.decimal(2, "eccentricity", l2[26:33])
	es.ArgPerigee = p.float(2, "arg_perigee", l2[34:42])
	es.MeanAnomaly = p.float(2, "mean_anomaly", l2[43:51])
	es.MeanMotion = p.float(2, "mean_motion", l2[52:63])
	es.RevNumber = p.optionalInt(2, "rev_number", l2[63:68])
	if p.err != nil {
		return nil, p.err
	}

	es.EpochYear = fullYear(yy)
	if err := es.Validate(); err != nil {
		return nil, err
	}
	es.Epoch = timesys.FromEpoch(es.EpochYear, es.EpochDay)
	return es, nil
}

// ParseText accepts an element set as text: either the two element lines or
// a title line followed by them. Blank lines are ignored.
func ParseText(text string) (*ElementSet, error) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, " \t\r")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	switch len(lines) {
	case 2:
		return Parse(lines[0], lines[1])
	case 3:
		es, err := Parse(lines[1], lines[2])
		if err != nil {
			return nil, err
		}
		es.Name = titleName(lines[0])
		return es, nil
	}
	return nil, malformed(0, "", "", "expected 2 or 3 non-empty lines, got "+strconv.Itoa(len(lines)))
}

// Validate checks that every element is physically meaningful.
func (e *ElementSet) Validate() error {
	switch {
	case e.Eccentricity < 0 || e.Eccentricity >= 1:
		return outOfRange(2, "eccentricity", e.Eccentricity, "[0, 1)")
	case e.Inclination < 0 || e.Inclination > 180:
		return outOfRange(2, "inclination", e.Inclination, "[0, 180]")
	case e.RAAN < 0 || e.RAAN >= 360:
		return outOfRange(2, "raan", e.RAAN, "[0, 360)")
	case e.ArgPerigee < 0 || e.ArgPerigee >= 360:
		return outOfRange(2, "arg_perigee", e.ArgPerigee, "[0, 360)")
	case e.MeanAnomaly < 0 || e.MeanAnomaly >= 360:
		return outOfRange(2, "mean_anomaly", e.MeanAnomaly, "[0, 360)")
	case e.MeanMotion <= 0:
		return outOfRange(2, "mean_motion", e.MeanMotion, "(0, +inf)")
	case e.EpochDay < 1 || e.EpochDay >= 367:
		return outOfRange(1, "epoch_day", e.EpochDay, "[1, 367)")
	}
	return nil
}

// Checksum computes the modulo-10 checksum over the first 68 columns:
// digits count their value, minus signs count one, everything else zero.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < LineLength-1; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func trimLine(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}

func checkLine(line string, n int) error {
	if len(line) != LineLength {
		return malformed(n, "", "", "expected "+strconv.Itoa(LineLength)+" columns, got "+strconv.Itoa(len(line)))
	}
	if line[0] != byte('0'+n) || line[1] != ' ' {
		return malformed(n, "line_number", line[:2], "wrong line number")
	}
	last := line[LineLength-1]
	if last < '0' || last > '9' {
		return malformed(n, "checksum", string(last), "checksum is not a digit")
	}
	if want := Checksum(line); int(last-'0') != want {
		return malformed(n, "checksum", string(last), "checksum mismatch, computed "+strconv.Itoa(want))
	}
	return nil
}

// fullYear maps a two-digit epoch year onto 1957..2056.
func fullYear(yy int) int {
	if yy < 57 {
		return 2000 + yy
	}
	return 1900 + yy
}

// titleName strips the "0 " prefix some catalogs put on the title line.
func titleName(line string) string {
	name := strings.TrimSpace(line)
	if strings.HasPrefix(name, "0 ") {
		name = strings.TrimSpace(name[2:])
	}
	return name
}
