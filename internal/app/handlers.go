package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/satcal/internal/catalog"
	"github.com/large-farva/satcal/internal/config"
	"github.com/large-farva/satcal/internal/metrics"
	"github.com/large-farva/satcal/internal/telemetry"
	"github.com/large-farva/satcal/internal/track"
)

// maxRequestBody bounds POST bodies. A track request is two element lines
// and a handful of numbers.
const maxRequestBody = 1 << 20

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	resp := map[string]any{
		"name":           "satcal",
		"state":          a.currentState(),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"active_runs":    a.active.Load(),
		"runs_total":     a.runs.Load(),
		"ws_clients":     a.wsHub.Clients(),
		"ellipsoid":      cfg.Ellipsoid().Name,
		"gravity":        cfg.Gravity().Name,
		"workers":        effectiveWorkers(cfg),
		"data_root":      cfg.Catalog.DataRoot,
	}

	// Disk usage for the catalog cache.
	if du := diskUsage(cfg.Catalog.DataRoot); du != nil {
		resp["disk"] = du
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.getConfig())
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	checks := map[string]any{}
	allOK := true

	// Check the catalog cache directory is writable.
	cacheDir := filepath.Join(cfg.Catalog.DataRoot, "tle")
	tmpPath := filepath.Join(cacheDir, ".healthcheck")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		checks["data_dir"] = map[string]any{"ok": true, "path": cacheDir}
	}

	// Count cached element sets; an empty cache is fine, tracking by lines
	// does not need it.
	if entries, err := filepath.Glob(filepath.Join(cacheDir, "*.tle")); err == nil {
		checks["tle_cache"] = map[string]any{"ok": true, "entries": len(entries)}
	}

	// Config file readable.
	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

// ---------------------------------------------------------------------------
// Tracking
// ---------------------------------------------------------------------------

// trackRequest is the POST /api/track body: either element lines or a
// catalog number to look up.
type trackRequest struct {
	track.Request
	Catalog int `json:"catalog,omitempty"`
}

type trackResponse struct {
	RunID    string               `json:"run_id"`
	Name     string               `json:"name,omitempty"`
	Catalog  int                  `json:"catalog"`
	Source   string               `json:"source"`
	Start    string               `json:"start"`
	Interval float64              `json:"interval_seconds"`
	Summary  track.Summary        `json:"summary"`
	Samples  []track.SampleResult `json:"samples"`
}

func (a *App) handleTrack(w http.ResponseWriter, r *http.Request) {
	cfg := a.getConfig()

	var req trackRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		metrics.RecordRejected()
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	source := "request"
	if req.Catalog > 0 && strings.TrimSpace(req.Line1) == "" && strings.TrimSpace(req.Line2) == "" {
		es, src, err := a.getCatalog().FetchSource(r.Context(), req.Catalog)
		if err != nil {
			metrics.RecordRejected()
			code := http.StatusBadGateway
			if errors.Is(err, catalog.ErrNotFound) {
				code = http.StatusNotFound
			}
			jsonError(w, err.Error(), code)
			return
		}
		req.Line1, req.Line2 = es.Line1, es.Line2
		if req.Name == "" {
			req.Name = es.Name
		}
		source = string(src)
	}

	plan, err := req.PrepareWith(track.Limits{MaxSamples: cfg.Track.MaxSamples})
	if err != nil {
		metrics.RecordRejected()
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok":     false,
			"error":  "request rejected",
			"fields": inputErrors(err),
		})
		return
	}

	runID := uuid.NewString()
	a.beginRun()
	defer a.endRun()

	sess := track.NewSession(track.Options{
		Workers:           cfg.Track.Workers,
		ParallelThreshold: cfg.Track.ParallelThreshold,
		ProgressEvery:     cfg.Track.ProgressEvery,
		MaxSamples:        cfg.Track.MaxSamples,
		Progress: func(done, total int) {
			a.wsHub.BroadcastJSON(telemetry.NewProgress(component, runID, done, total))
		},
		Ellipsoid: cfg.Ellipsoid(),
		Gravity:   cfg.Gravity(),
		Logger:    a.log.With("run_id", runID),
	})

	started := time.Now()
	results, err := sess.Run(r.Context(), plan.Elements, plan.Window)
	if err != nil {
		metrics.RecordAborted()
		a.log.Info("run aborted", "run_id", runID, "err", err)
		jsonError(w, "run aborted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	elapsed := time.Since(started)

	sum := track.Summarize(results)
	metrics.RecordRun(elapsed, sum.OK, sum.KindCounts)

	done := telemetry.NewRunComplete(component, runID)
	done.Catalog = plan.Elements.CatalogNumber
	done.Name = plan.Name
	done.Samples = sum.Total
	done.OK = sum.OK
	done.LowConfidence = sum.LowConfidence
	done.Failures = sum.KindCounts
	done.ElapsedMS = elapsed.Milliseconds()
	if sum.FirstDecay != nil {
		done.FirstDecay = sum.FirstDecay.UTC().Format(time.RFC3339Nano)
		a.emit("warn", fmt.Sprintf("catalog %d decayed at %s", done.Catalog, done.FirstDecay))
	}
	a.wsHub.BroadcastJSON(done)

	a.log.Info("run complete",
		"run_id", runID,
		"catalog", done.Catalog,
		"samples", sum.Total,
		"failed", sum.Failed,
		"elapsed", elapsed,
	)

	writeJSON(w, http.StatusOK, trackResponse{
		RunID:    runID,
		Name:     plan.Name,
		Catalog:  plan.Elements.CatalogNumber,
		Source:   source,
		Start:    plan.Window.Start().Format(time.RFC3339Nano),
		Interval: plan.Window.Interval().Seconds(),
		Summary:  sum,
		Samples:  results,
	})
}

// inputErrors flattens a Prepare error into one entry per rejected field.
func inputErrors(err error) []map[string]string {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	out := make([]map[string]string, 0, len(errs))
	for _, e := range errs {
		var ie *track.InputError
		if errors.As(e, &ie) {
			out = append(out, map[string]string{"field": ie.Field, "error": ie.Err.Error()})
		} else {
			out = append(out, map[string]string{"error": e.Error()})
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Reload
// ---------------------------------------------------------------------------

func (a *App) handleReload(w http.ResponseWriter, _ *http.Request) {
	if a.configPath == "" {
		jsonError(w, "no config file path set", http.StatusConflict)
		return
	}

	newCfg, err := config.Load(a.configPath)
	if err != nil {
		jsonError(w, "config reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	a.cfgMu.Lock()
	a.cfg = newCfg
	a.catalog = newCatalog(newCfg, a.log)
	a.cfgMu.Unlock()

	a.log.Info("config reloaded", "path", a.configPath)
	a.emit("info", "config reloaded from "+a.configPath)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "configuration reloaded from " + a.configPath,
	})
}

func (a *App) getCatalog() *catalog.Store {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.catalog
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func effectiveWorkers(cfg config.Config) int {
	if cfg.Track.Workers > 0 {
		return cfg.Track.Workers
	}
	return runtime.NumCPU()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}
