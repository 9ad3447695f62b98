package tle

import (
	"errors"
	"fmt"
)

// Kind classifies a parse failure.
type Kind int

const (
	// MalformedLine covers structural problems: length, line number,
	// checksum, mismatched catalog numbers and unparsable fields.
	MalformedLine Kind = iota + 1
	// OutOfRange means a field parsed but its value is not physical.
	OutOfRange
)

func (k Kind) String() string {
	switch k {
	case MalformedLine:
		return "malformed_line"
	case OutOfRange:
		return "out_of_range"
	}
	return "unknown"
}

var (
	ErrMalformedLine = errors.New("malformed element set line")
	ErrOutOfRange    = errors.New("element out of range")
)

// ParseError reports why an element set was rejected. Line is 1 or 2, or 0
// when the problem spans both lines.
type ParseError struct {
	Kind  Kind
	Line  int
	Field string
	Value string
	Msg   string
}

func (e *ParseError) Error() string {
	where := "tle"
	if e.Line > 0 {
		where = fmt.Sprintf("tle line %d", e.Line)
	}
	if e.Field != "" {
		where += " " + e.Field
	}
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (%q)", where, e.Msg, e.Value)
	}
	return fmt.Sprintf("%s: %s", where, e.Msg)
}

// Is lets callers match on the kind with errors.Is(err, ErrOutOfRange).
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrMalformedLine:
		return e.Kind == MalformedLine
	case ErrOutOfRange:
		return e.Kind == OutOfRange
	}
	return false
}

func malformed(line int, field, value, msg string) *ParseError {
	return &ParseError{Kind: MalformedLine, Line: line, Field: field, Value: value, Msg: msg}
}

func outOfRange(line int, field string, value float64, bounds string) *ParseError {
	return &ParseError{
		Kind:  OutOfRange,
		Line:  line,
		Field: field,
		Value: fmt.Sprintf("%g", value),
		Msg:   "must be in " + bounds,
	}
}
