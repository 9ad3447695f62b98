// Package track turns an element set and a sampling window into a ground
// track: one geodetic position, or one typed propagation error, per instant.
//
// A Session holds only configuration. Each Run builds its own propagator, so
// a Session can serve any number of concurrent runs.
package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/large-farva/satcal/internal/geodesy"
	"github.com/large-farva/satcal/internal/sgp4"
	"github.com/large-farva/satcal/internal/timesys"
	"github.com/large-farva/satcal/internal/tle"
)

var (
	// ErrNilElements is returned by Run when no element set is given.
	ErrNilElements = errors.New("track: element set is nil")
	// ErrWindowTooLarge is returned by Run for a window with more instants
	// than Options.MaxSamples.
	ErrWindowTooLarge = errors.New("track: window has too many samples")
)

const (
	DefaultParallelThreshold = 256
	DefaultProgressEvery     = 1000

	// Chunks per worker. More than one keeps workers busy when deep-space
	// samples far from epoch cost more than the ones near it.
	chunksPerWorker = 4
)

// Options configures a Session. The zero value is usable.
type Options struct {
	// Workers bounds parallelism. Zero means runtime.NumCPU().
	Workers int
	// ParallelThreshold is the smallest window that is split across workers.
	// Zero means DefaultParallelThreshold; a negative value disables
	// parallel runs.
	ParallelThreshold int
	// MaxSamples caps the window length Run accepts. Zero means
	// DefaultMaxSamples.
	MaxSamples int

	// Progress, when set, is called with the number of finished samples at
	// most once every ProgressEvery samples and once at the end. It may be
	// called from several goroutines.
	Progress      func(done, total int)
	ProgressEvery int

	Ellipsoid geodesy.Ellipsoid
	Gravity   sgp4.Gravity
	Logger    *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.ParallelThreshold == 0 {
		o.ParallelThreshold = DefaultParallelThreshold
	}
	if o.MaxSamples <= 0 {
		o.MaxSamples = DefaultMaxSamples
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	if o.Ellipsoid.SemiMajorAxis == 0 {
		o.Ellipsoid = geodesy.WGS84
	}
	if o.Gravity.Name == "" {
		o.Gravity = sgp4.WGS72
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Session runs ground-track computations with a fixed configuration.
type Session struct {
	opts Options
	log  *slog.Logger
}

// NewSession returns a Session with defaults filled in.
func NewSession(opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{opts: opts, log: opts.Logger.With("component", "track")}
}

// Options returns the effective configuration.
func (s *Session) Options() Options {
	return s.opts
}

// Run computes one result per window instant, in instant order.
//
// A propagation failure is recorded on its sample and the run continues.
// Run itself fails only for a nil element set, a window longer than
// MaxSamples or a cancelled context, and then returns no results at all.
func (s *Session) Run(ctx context.Context, es *tle.ElementSet, w timesys.Window) ([]SampleResult, error) {
	if es == nil {
		return nil, ErrNilElements
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := w.Len()
	if n > s.opts.MaxSamples {
		return nil, fmt.Errorf("%w: %d > %d", ErrWindowTooLarge, n, s.opts.MaxSamples)
	}
	prop := sgp4.New(es, sgp4.WithGravity(s.opts.Gravity))
	out := make([]SampleResult, n)
	prog := &progress{total: n, every: s.opts.ProgressEvery, fn: s.opts.Progress}

	started := time.Now()
	s.log.Debug("run started",
		"catalog", es.CatalogNumber,
		"samples", n,
		"deep_space", prop.IsDeepSpace(),
		"start", w.Start(),
		"interval", w.Interval(),
	)

	var err error
	if s.parallel(n) {
		err = s.runParallel(ctx, prop, w, out, prog)
	} else {
		err = s.runSequential(ctx, prop, w, out, prog)
	}
	if err != nil {
		s.log.Debug("run aborted", "catalog", es.CatalogNumber, "err", err)
		return nil, err
	}
	prog.finish()

	sum := Summarize(out)
	s.log.Debug("run finished",
		"catalog", es.CatalogNumber,
		"samples", n,
		"elapsed", time.Since(started),
	)
	if sum.Failed > 0 {
		args := []any{"catalog", es.CatalogNumber, "failed", sum.Failed, "total", sum.Total}
		for _, kc := range sum.Kinds() {
			args = append(args, kc.Kind.String(), kc.Count)
		}
		s.log.Info("propagation failures", args...)
	}
	return out, nil
}

func (s *Session) parallel(n int) bool {
	return s.opts.ParallelThreshold > 0 && s.opts.Workers > 1 && n >= s.opts.ParallelThreshold
}

func (s *Session) runSequential(ctx context.Context, prop *sgp4.Propagator, w timesys.Window, out []SampleResult, prog *progress) error {
	for k, at := range w.Instants() {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.sample(prop, k, at, w.TimeAt(k))
		if err != nil {
			return err
		}
		out[k] = res
		prog.add()
	}
	return nil
}

// runParallel splits the window into contiguous chunks. Every sample is
// written to its own slot, so the output order does not depend on
// scheduling and matches a sequential run exactly.
func (s *Session) runParallel(ctx context.Context, prop *sgp4.Propagator, w timesys.Window, out []SampleResult, prog *progress) error {
	n := len(out)
	chunk := (n + s.opts.Workers*chunksPerWorker - 1) / (s.opts.Workers * chunksPerWorker)
	if chunk < 1 {
		chunk = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for k := lo; k < hi; k++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := s.sample(prop, k, w.At(k), w.TimeAt(k))
				if err != nil {
					return err
				}
				out[k] = res
				prog.add()
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Session) sample(prop *sgp4.Propagator, k int, at timesys.Instant, t time.Time) (SampleResult, error) {
	res := SampleResult{Index: k, At: at, Time: t}

	sv, err := prop.Propagate(at)
	if err != nil {
		var pe *sgp4.PropagationError
		if !errors.As(err, &pe) {
			return SampleResult{}, fmt.Errorf("sample %d: %w", k, err)
		}
		res.Err = pe
		return res, nil
	}

	gmst := geodesy.GMST(at)
	res.Position = geodesy.ToGeodetic(geodesy.TEMEToECEFWithGMST(sv.Position, gmst), s.opts.Ellipsoid)
	return res, nil
}

type progress struct {
	total int
	every int
	fn    func(done, total int)
	done  atomic.Int64
}

func (p *progress) add() {
	if p.fn == nil {
		return
	}
	n := int(p.done.Add(1))
	if n%p.every == 0 && n < p.total {
		p.fn(n, p.total)
	}
}

func (p *progress) finish() {
	if p.fn != nil {
		p.fn(p.total, p.total)
	}
}
