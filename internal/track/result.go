package track

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/large-farva/satcal/internal/geodesy"
	"github.com/large-farva/satcal/internal/sgp4"
	"github.com/large-farva/satcal/internal/timesys"
)

// SampleResult is the outcome for one instant: a position when Err is nil,
// otherwise the propagation failure for that instant.
type SampleResult struct {
	Index    int
	At       timesys.Instant
	Time     time.Time
	Position geodesy.Position
	Err      *sgp4.PropagationError
}

// OK reports whether the sample carries a position.
func (r SampleResult) OK() bool {
	return r.Err == nil
}

// LowConfidence reports a position whose latitude iteration did not
// converge.
func (r SampleResult) LowConfidence() bool {
	return r.Err == nil && !r.Position.Converged
}

type sampleJSON struct {
	Time   string  `json:"time"`
	JDDay  int64   `json:"jd_day"`
	JDFrac float64 `json:"jd_frac"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	AltM   float64 `json:"alt_m"`
	Conv   bool    `json:"converged"`
}

type failedSampleJSON struct {
	Time   string    `json:"time"`
	JDDay  int64     `json:"jd_day"`
	JDFrac float64   `json:"jd_frac"`
	Error  errorJSON `json:"error"`
}

type errorJSON struct {
	Kind   string `json:"kind"`
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

func (r SampleResult) MarshalJSON() ([]byte, error) {
	ts := r.Time.UTC().Format(time.RFC3339Nano)
	if r.Err != nil {
		return json.Marshal(failedSampleJSON{
			Time:   ts,
			JDDay:  r.At.Day,
			JDFrac: r.At.Frac,
			Error: errorJSON{
				Kind:   r.Err.Kind.String(),
				Code:   r.Err.Kind.Code(),
				Detail: r.Err.Kind.Description(),
			},
		})
	}
	return json.Marshal(sampleJSON{
		Time:   ts,
		JDDay:  r.At.Day,
		JDFrac: r.At.Frac,
		Lat:    r.Position.Latitude,
		Lon:    r.Position.Longitude,
		AltM:   r.Position.Altitude,
		Conv:   r.Position.Converged,
	})
}

// Summary counts the outcomes of a run.
type Summary struct {
	Total         int               `json:"total"`
	OK            int               `json:"ok"`
	Failed        int               `json:"failed"`
	LowConfidence int               `json:"low_confidence"`
	ByKind        map[sgp4.Kind]int `json:"-"`
	FirstFailure  *time.Time        `json:"first_failure,omitempty"`
	FirstDecay    *time.Time        `json:"first_decay,omitempty"`
	KindCounts    map[string]int    `json:"failures,omitempty"`
}

// KindCount is one row of Summary.Kinds.
type KindCount struct {
	Kind  sgp4.Kind
	Count int
}

// Summarize tallies results.
func Summarize(results []SampleResult) Summary {
	sum := Summary{Total: len(results)}
	for i := range results {
		r := &results[i]
		if r.Err == nil {
			sum.OK++
			if !r.Position.Converged {
				sum.LowConfidence++
			}
			continue
		}
		sum.Failed++
		if sum.ByKind == nil {
			sum.ByKind = make(map[sgp4.Kind]int)
			sum.KindCounts = make(map[string]int)
		}
		sum.ByKind[r.Err.Kind]++
		sum.KindCounts[r.Err.Kind.String()]++
		if sum.FirstFailure == nil {
			t := r.Time
			sum.FirstFailure = &t
		}
		if sum.FirstDecay == nil && r.Err.IsDecay() {
			t := r.Time
			sum.FirstDecay = &t
		}
	}
	return sum
}

// Kinds returns the failure counts ordered by kind code.
func (s Summary) Kinds() []KindCount {
	out := make([]KindCount, 0, len(s.ByKind))
	for k, n := range s.ByKind {
		out = append(out, KindCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
