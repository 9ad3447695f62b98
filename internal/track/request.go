package track

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/large-farva/satcal/internal/timesys"
	"github.com/large-farva/satcal/internal/tle"
)

var (
	ErrMissingLine         = errors.New("element line is missing")
	ErrZeroDuration        = errors.New("total duration must be greater than zero")
	ErrNegativeDuration    = timesys.ErrNegativeDuration
	ErrNonPositiveInterval = timesys.ErrNonPositiveInterval
	ErrTooManySamples      = errors.New("window has too many samples")
)

// DefaultMaxSamples caps a window when no explicit limit is given.
const DefaultMaxSamples = 5_000_000

// maxSpanSeconds keeps Span.Duration inside time.Duration.
const maxSpanSeconds = math.MaxInt64 / int64(time.Second)

// InputError reports one rejected request field.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Request is a ground-track request as an operator or API client enters it.
type Request struct {
	Name            string       `json:"name,omitempty"`
	Line1           string       `json:"line1"`
	Line2           string       `json:"line2"`
	Span            timesys.Span `json:"span"`
	IntervalSeconds float64      `json:"interval_seconds"`
	// Start defaults to the current UTC time.
	Start *time.Time `json:"start,omitempty"`
}

// Limits bounds what Prepare accepts.
type Limits struct {
	MaxSamples int
	// Now supplies the default start time. Nil means time.Now.
	Now func() time.Time
}

// Plan is a validated request, ready for Session.Run.
type Plan struct {
	Name     string
	Elements *tle.ElementSet
	Window   timesys.Window
}

// Prepare validates the request with default limits.
func (r Request) Prepare() (*Plan, error) {
	return r.PrepareWith(Limits{})
}

// PrepareWith validates every field and returns either a Plan or all the
// problems found, each as an *InputError joined into one error. Nothing is
// computed for a rejected request.
func (r Request) PrepareWith(l Limits) (*Plan, error) {
	if l.MaxSamples <= 0 {
		l.MaxSamples = DefaultMaxSamples
	}
	if l.Now == nil {
		l.Now = time.Now
	}

	var errs []error
	reject := func(field string, err error) {
		errs = append(errs, &InputError{Field: field, Err: err})
	}

	var es *tle.ElementSet
	l1, l2 := strings.TrimSpace(r.Line1), strings.TrimSpace(r.Line2)
	if l1 == "" {
		reject("line1", ErrMissingLine)
	}
	if l2 == "" {
		reject("line2", ErrMissingLine)
	}
	if l1 != "" && l2 != "" {
		parsed, err := tle.Parse(r.Line1, r.Line2)
		if err != nil {
			reject("tle", err)
		} else {
			es = parsed
			if r.Name != "" {
				es.Name = r.Name
			}
		}
	}

	spanOK := false
	switch total := r.Span.TotalSeconds(); {
	case r.Span.Validate() != nil:
		reject("span", fmt.Errorf("%w: %w", ErrNegativeDuration, r.Span.Validate()))
	case total == 0:
		reject("span", ErrZeroDuration)
	case total > maxSpanSeconds || total < 0:
		reject("span", fmt.Errorf("%w: span of %d s", ErrTooManySamples, total))
	default:
		spanOK = true
	}

	interval := r.IntervalSeconds
	intervalOK := !math.IsNaN(interval) && interval > 0 && interval < float64(maxSpanSeconds) &&
		time.Duration(interval*float64(time.Second)) > 0
	if !intervalOK {
		reject("interval_seconds", fmt.Errorf("%w: %g s", ErrNonPositiveInterval, interval))
	}

	var w timesys.Window
	if spanOK && intervalOK {
		start := l.Now()
		if r.Start != nil {
			start = *r.Start
		}
		var err error
		w, err = timesys.NewWindow(start, r.Span.Duration(), time.Duration(interval*float64(time.Second)))
		if err != nil {
			reject("window", err)
		} else if w.Len() > l.MaxSamples {
			reject("interval_seconds", fmt.Errorf("%w: %d > %d", ErrTooManySamples, w.Len(), l.MaxSamples))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	name := r.Name
	if name == "" {
		name = es.Name
	}
	return &Plan{Name: name, Elements: es, Window: w}, nil
}
