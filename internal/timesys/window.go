package timesys

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"time"
)

var (
	ErrNegativeDuration    = errors.New("duration must not be negative")
	ErrNonPositiveInterval = errors.New("interval must be positive")
	ErrNegativeComponent   = errors.New("duration components must not be negative")
)

// Span is a duration expressed the way an operator enters it.
type Span struct {
	Days    int `json:"days"    toml:"days"`
	Hours   int `json:"hours"   toml:"hours"`
	Minutes int `json:"minutes" toml:"minutes"`
	Seconds int `json:"seconds" toml:"seconds"`
}

// Validate rejects negative components.
func (s Span) Validate() error {
	for _, c := range []struct {
		name string
		v    int
	}{{"days", s.Days}, {"hours", s.Hours}, {"minutes", s.Minutes}, {"seconds", s.Seconds}} {
		if c.v < 0 {
			return fmt.Errorf("%w: %s=%d", ErrNegativeComponent, c.name, c.v)
		}
	}
	return nil
}

// TotalSeconds returns the span length in whole seconds. A span that does
// not fit in an int64 saturates at math.MaxInt64 (or math.MinInt64) instead
// of wrapping.
func (s Span) TotalSeconds() int64 {
	var total int64
	for _, c := range [...][2]int64{
		{int64(s.Days), 86400},
		{int64(s.Hours), 3600},
		{int64(s.Minutes), 60},
		{int64(s.Seconds), 1},
	} {
		v, unit := c[0], c[1]
		switch {
		case v > math.MaxInt64/unit:
			return math.MaxInt64
		case v < math.MinInt64/unit:
			return math.MinInt64
		}
		p := v * unit
		switch {
		case p > 0 && total > math.MaxInt64-p:
			return math.MaxInt64
		case p < 0 && total < math.MinInt64-p:
			return math.MinInt64
		}
		total += p
	}
	return total
}

// maxDurationSeconds is the longest span time.Duration can hold.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// Duration returns the span as a time.Duration, clamped to the
// representable range.
func (s Span) Duration() time.Duration {
	switch total := s.TotalSeconds(); {
	case total > maxDurationSeconds:
		return math.MaxInt64
	case total < -maxDurationSeconds:
		return math.MinInt64
	default:
		return time.Duration(total) * time.Second
	}
}

// Window is a right-open sampling window: start, start+interval, ... while
// the offset stays below the duration. The zero-duration window is empty.
type Window struct {
	start    time.Time
	duration time.Duration
	interval time.Duration
}

// NewWindow validates and builds a Window.
func NewWindow(start time.Time, duration, interval time.Duration) (Window, error) {
	if duration < 0 {
		return Window{}, fmt.Errorf("%w: %s", ErrNegativeDuration, duration)
	}
	if interval <= 0 {
		return Window{}, fmt.Errorf("%w: %s", ErrNonPositiveInterval, interval)
	}
	return Window{start: start.UTC(), duration: duration, interval: interval}, nil
}

func (w Window) Start() time.Time { return w.start }

func (w Window) Duration() time.Duration { return w.duration }

func (w Window) Interval() time.Duration { return w.interval }

// Len is the number of instants: ceil(duration / interval).
func (w Window) Len() int {
	if w.interval <= 0 || w.duration <= 0 {
		return 0
	}
	n := w.duration / w.interval
	if w.duration%w.interval != 0 {
		n++
	}
	return int(n)
}

// TimeAt returns the calendar time of the k-th sample. Each sample is derived
// from the start directly so no rounding accumulates along the sequence.
func (w Window) TimeAt(k int) time.Time {
	return w.start.Add(time.Duration(k) * w.interval)
}

// At returns the k-th sample instant.
func (w Window) At(k int) Instant {
	return FromTime(w.TimeAt(k))
}

// Instants yields (index, instant) pairs in order. The sequence is lazy and
// can be ranged over any number of times with identical results.
func (w Window) Instants() iter.Seq2[int, Instant] {
	return func(yield func(int, Instant) bool) {
		n := w.Len()
		for k := 0; k < n; k++ {
			if !yield(k, w.At(k)) {
				return
			}
		}
	}
}
