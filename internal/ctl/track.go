package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/large-farva/satcal/internal/catalog"
	"github.com/large-farva/satcal/internal/config"
	"github.com/large-farva/satcal/internal/timesys"
	"github.com/large-farva/satcal/internal/tle"
	"github.com/large-farva/satcal/internal/track"
)

// ErrSource is returned when the element set source is missing or ambiguous.
var ErrSource = errors.New("give exactly one of --line1/--line2, --tle-file or --norad")

// TrackOptions describes a ground-track run as entered on the command line.
type TrackOptions struct {
	Line1   string
	Line2   string
	TLEFile string
	Norad   int
	Name    string

	Span timesys.Span
	// IntervalSeconds nil means the configured default.
	IntervalSeconds *float64
	// Start is an RFC 3339 time; empty means now.
	Start string

	JSON   bool
	Config config.Config
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
}

func (o *TrackOptions) defaults() {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// trackOutput is the --json rendering of a local run.
type trackOutput struct {
	Name     string               `json:"name,omitempty"`
	Catalog  int                  `json:"catalog"`
	Start    string               `json:"start"`
	Interval float64              `json:"interval_seconds"`
	Summary  track.Summary        `json:"summary"`
	Samples  []track.SampleResult `json:"samples"`
}

// Track computes a ground track in-process and prints it.
func Track(ctx context.Context, opts TrackOptions) error {
	opts.defaults()
	cfg := opts.Config

	req, err := buildRequest(ctx, opts, true)
	if err != nil {
		return err
	}

	plan, err := req.PrepareWith(track.Limits{MaxSamples: cfg.Track.MaxSamples})
	if err != nil {
		return err
	}

	sess := track.NewSession(track.Options{
		Workers:           cfg.Track.Workers,
		ParallelThreshold: cfg.Track.ParallelThreshold,
		MaxSamples:        cfg.Track.MaxSamples,
		Ellipsoid:         cfg.Ellipsoid(),
		Gravity:           cfg.Gravity(),
		Logger:            opts.Logger,
	})
	results, err := sess.Run(ctx, plan.Elements, plan.Window)
	if err != nil {
		return err
	}
	sum := track.Summarize(results)

	if opts.JSON {
		return writeJSON(opts.Out, trackOutput{
			Name:     plan.Name,
			Catalog:  plan.Elements.CatalogNumber,
			Start:    plan.Window.Start().Format(time.RFC3339Nano),
			Interval: plan.Window.Interval().Seconds(),
			Summary:  sum,
			Samples:  results,
		})
	}

	if err := writeSamples(opts.Out, results); err != nil {
		return err
	}
	if note := failureNote(sum.Total, sum.Failed, sum.KindCounts); note != "" {
		fmt.Fprintln(opts.Err, note)
	}
	return nil
}

// buildRequest resolves the element set source and timing flags into a
// track.Request. With resolveNorad false a catalog number is left for the
// daemon to look up.
func buildRequest(ctx context.Context, opts TrackOptions, resolveNorad bool) (track.Request, error) {
	req := track.Request{
		Name:  opts.Name,
		Span:  opts.Span,
		Line1: opts.Line1,
		Line2: opts.Line2,
	}

	sources := 0
	if opts.Line1 != "" || opts.Line2 != "" {
		sources++
	}
	if opts.TLEFile != "" {
		sources++
	}
	if opts.Norad != 0 {
		sources++
	}
	if sources != 1 {
		return req, ErrSource
	}

	switch {
	case opts.TLEFile != "":
		b, err := os.ReadFile(opts.TLEFile)
		if err != nil {
			return req, err
		}
		es, err := tle.ParseText(string(b))
		if err != nil {
			return req, fmt.Errorf("%s: %w", opts.TLEFile, err)
		}
		req.Line1, req.Line2 = es.Line1, es.Line2
		if req.Name == "" {
			req.Name = es.Name
		}

	case opts.Norad != 0 && resolveNorad:
		cfg := opts.Config
		store := catalog.NewStore(cfg.Catalog.URLTemplate, cfg.Catalog.DataRoot, cfg.Catalog.RefreshHours,
			catalog.WithLogger(opts.Logger))
		es, err := store.Fetch(ctx, opts.Norad)
		if err != nil {
			return req, err
		}
		req.Line1, req.Line2 = es.Line1, es.Line2
		if req.Name == "" {
			req.Name = es.Name
		}
	}

	if opts.IntervalSeconds != nil {
		req.IntervalSeconds = *opts.IntervalSeconds
	} else {
		req.IntervalSeconds = opts.Config.Track.DefaultIntervalSeconds
	}

	if s := strings.TrimSpace(opts.Start); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return req, fmt.Errorf("--start: %w", err)
		}
		t = t.UTC()
		req.Start = &t
	}
	return req, nil
}
