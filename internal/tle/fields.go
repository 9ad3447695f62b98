package tle

import (
	"strconv"
	"strings"
)

// fieldParser records the first field error so a whole line can be read
// without checking after every column.
type fieldParser struct {
	err error
}

func (p *fieldParser) fail(line int, field, raw, msg string) {
	if p.err == nil {
		p.err = malformed(line, field, raw, msg)
	}
}

func (p *fieldParser) float(line int, field, raw string) float64 {
	s := strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || strings.ContainsAny(s, "eEnN") {
		p.fail(line, field, raw, "not a decimal number")
		return 0
	}
	return v
}

func (p *fieldParser) integer(line int, field, raw string) int {
	s := strings.TrimSpace(raw)
	v, err := strconv.Atoi(s)
	if err != nil {
		p.fail(line, field, raw, "not an integer")
		return 0
	}
	return v
}

// optionalInt treats an all-blank field as zero.
func (p *fieldParser) optionalInt(line int, field, raw string) int {
	if strings.TrimSpace(raw) == "" {
		return 0
	}
	return p.integer(line, field, raw)
}

// decimal reads a field with an implied leading decimal point, such as the
// eccentricity "0006703" meaning 0.0006703. A sign is allowed so that a
// negative value reaches range validation instead of being misread.
func (p *fieldParser) decimal(line int, field, raw string) float64 {
	s := strings.TrimSpace(raw)
	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}
	if s == "" || !allDigits(s) {
		p.fail(line, field, raw, "expected digits with an implied decimal point")
		return 0
	}
	v, err := strconv.ParseFloat(sign+"0."+s, 64)
	if err != nil {
		p.fail(line, field, raw, "expected digits with an implied decimal point")
		return 0
	}
	return v
}

// implied reads the 8-column exponent notation used for the second
// derivative of mean motion and B*: " 28098-4" is 0.28098e-4.
func (p *fieldParser) implied(line int, field, raw string) float64 {
	if strings.TrimSpace(raw) == "" {
		return 0
	}
	if len(raw) != 8 {
		p.fail(line, field, raw, "expected 8 columns")
		return 0
	}
	sign := raw[0]
	mantissa := strings.TrimSpace(raw[1:6])
	expSign, expDigit := raw[6], raw[7]

	switch {
	case sign != ' ' && sign != '+' && sign != '-':
		p.fail(line, field, raw, "bad mantissa sign")
		return 0
	case mantissa == "" || !allDigits(mantissa):
		p.fail(line, field, raw, "bad mantissa")
		return 0
	case expSign != '+' && expSign != '-' && expSign != ' ':
		p.fail(line, field, raw, "bad exponent sign")
		return 0
	case expDigit < '0' || expDigit > '9':
		p.fail(line, field, raw, "bad exponent")
		return 0
	}

	text := "0." + mantissa + "e"
	if sign == '-' {
		text = "-" + text
	}
	if expSign == '-' {
		text += "-"
	}
	text += string(expDigit)
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.fail(line, field, raw, "bad exponent notation")
		return 0
	}
	return v
}

// catalog reads a catalog number, accepting the Alpha-5 form where the
// leading letter (I and O excluded) encodes the ten-thousands: A0001 is 100001.
func (p *fieldParser) catalog(line int, raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		p.fail(line, "catalog_number", raw, "missing catalog number")
		return 0
	}
	lead := s[0]
	if lead >= 'A' && lead <= 'Z' {
		hi, ok := alpha5(lead)
		if !ok || len(s) != 5 || !allDigits(s[1:]) {
			p.fail(line, "catalog_number", raw, "bad Alpha-5 catalog number")
			return 0
		}
		lo, _ := strconv.Atoi(s[1:])
		return hi*10000 + lo
	}
	if !allDigits(s) {
		p.fail(line, "catalog_number", raw, "not an integer")
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

func alpha5(c byte) (int, bool) {
	switch {
	case c == 'I' || c == 'O':
		return 0, false
	case c < 'I':
		return int(c-'A') + 10, true
	case c < 'O':
		return int(c-'A') + 9, true
	}
	return int(c-'A') + 8, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
