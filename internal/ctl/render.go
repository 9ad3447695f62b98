package ctl

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/large-farva/satcal/internal/track"
)

// lowConfidence marks a position whose geodetic conversion hit its
// iteration cap before converging.
const lowConfidence = " (low confidence)"

// sampleLine renders one sample the way an operator reads a ground track.
// A non-empty errDesc replaces the coordinates.
func sampleLine(ts string, lat, lon, altKm float64, converged bool, errDesc string) string {
	if errDesc != "" {
		return fmt.Sprintf("Time: %s, Error: %s", ts, errDesc)
	}
	line := fmt.Sprintf("Time: %s, Lat: %.6f, Lon: %.6f, Alt: %.2f km", ts, lat, lon, altKm)
	if !converged {
		line += lowConfidence
	}
	return line
}

// writeSamples prints one line per locally computed sample, in order.
func writeSamples(w io.Writer, results []track.SampleResult) error {
	bw := bufio.NewWriter(w)
	for _, r := range results {
		ts := r.Time.UTC().Format(time.RFC3339Nano)
		var line string
		if r.Err != nil {
			line = sampleLine(ts, 0, 0, 0, false, r.Err.Kind.Description())
		} else {
			line = sampleLine(ts, r.Position.Latitude, r.Position.Longitude, r.Position.Altitude/1000, r.Position.Converged, "")
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// remoteSample is one entry of the samples array returned by satcald.
type remoteSample struct {
	Time      string  `json:"time"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	AltM      float64 `json:"alt_m"`
	Converged bool    `json:"converged"`
	Error     *struct {
		Kind   string `json:"kind"`
		Code   int    `json:"code"`
		Detail string `json:"detail"`
	} `json:"error"`
}

func writeRemoteSamples(w io.Writer, samples []remoteSample) error {
	bw := bufio.NewWriter(w)
	for _, s := range samples {
		var line string
		if s.Error != nil {
			line = sampleLine(s.Time, 0, 0, 0, false, s.Error.Detail)
		} else {
			line = sampleLine(s.Time, s.Lat, s.Lon, s.AltM/1000, s.Converged, "")
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// failureNote summarises failed samples in one line, or returns "" when
// every sample succeeded.
func failureNote(total, failed int, byKind map[string]int) string {
	if failed == 0 {
		return ""
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, byKind[k]))
	}
	return fmt.Sprintf("%d of %d samples failed (%s)", failed, total, strings.Join(parts, ", "))
}
