// Package app wires together the HTTP server, WebSocket hub, element set
// catalog and track sessions. It owns the daemon's lifecycle and is the
// single source of truth for the current operating state.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/satcal/internal/catalog"
	"github.com/large-farva/satcal/internal/config"
	"github.com/large-farva/satcal/internal/metrics"
	"github.com/large-farva/satcal/internal/telemetry"
	"github.com/large-farva/satcal/internal/ws"
)

// Operating states reported in /api/status and state events.
const (
	StateBooting  = "BOOTING"
	StateIdle     = "IDLE"
	StateTracking = "TRACKING"
)

const (
	component         = "satcald"
	heartbeatInterval = 10 * time.Second
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *slog.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string
}

// App is the top-level daemon process. It manages the HTTP server, the
// WebSocket event hub, and the track runs submitted over HTTP.
type App struct {
	log        *slog.Logger
	bind       string
	server     *http.Server
	configPath string

	cfgMu   sync.RWMutex
	cfg     config.Config
	catalog *catalog.Store

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, IDLE, TRACKING)
	stateMu   sync.Mutex
	active    atomic.Int64
	runs      atomic.Int64

	wsHub *ws.Hub
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{
		log:        logger.With("component", component),
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		wsHub:      ws.NewHub(logger),
	}
	a.catalog = newCatalog(opts.Cfg, logger)
	a.state.Store(StateBooting)
	return a
}

func newCatalog(cfg config.Config, logger *slog.Logger) *catalog.Store {
	return catalog.NewStore(cfg.Catalog.URLTemplate, cfg.Catalog.DataRoot, cfg.Catalog.RefreshHours,
		catalog.WithLogger(logger))
}

// Handler builds the HTTP routes, wrapped in the metrics middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /api/status", a.handleStatus)
	mux.HandleFunc("GET /api/version", a.handleVersion)
	mux.HandleFunc("GET /api/config", a.handleConfig)
	mux.HandleFunc("POST /api/reload", a.handleReload)
	mux.HandleFunc("POST /api/track", a.handleTrack)
	mux.Handle("GET /ws", a.wsHub.Handler())
	mux.Handle("GET /metrics", metrics.Handler())
	return metrics.Middleware(mux)
}

// Run starts the HTTP server, WebSocket hub, and heartbeat ticker. It blocks
// until the context is cancelled or the server returns an error.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" {
		bind = a.getConfig().Server.Bind
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.log.Info("listening", "url", "http://"+ln.Addr().String())

	go a.wsHub.Run(ctx)
	a.transition(StateIdle)
	go a.heartbeatLoop(ctx)

	go func() {
		<-ctx.Done()
		a.log.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
	}()

	err = a.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) getConfig() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

func (a *App) currentState() string {
	return a.state.Load().(string)
}

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	a.swapState(func() string { return newState })
}

// swapState computes the next state under the lock so concurrent runs
// starting and finishing cannot leave a stale state behind.
func (a *App) swapState(next func() string) {
	a.stateMu.Lock()
	old := a.currentState()
	newState := next()
	if old == newState {
		a.stateMu.Unlock()
		return
	}
	a.state.Store(newState)
	a.stateMu.Unlock()

	a.log.Debug("state change", "from", old, "to", newState)
	a.wsHub.BroadcastJSON(telemetry.NewStateTransition(component, old, newState))
}

func (a *App) runState() string {
	if a.active.Load() > 0 {
		return StateTracking
	}
	return StateIdle
}

// beginRun and endRun keep the state at TRACKING while any run is active.
func (a *App) beginRun() {
	a.active.Add(1)
	a.runs.Add(1)
	a.swapState(a.runState)
}

func (a *App) endRun() {
	a.active.Add(-1)
	a.swapState(a.runState)
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.BroadcastJSON(telemetry.NewHeartbeat(component, a.currentState(), time.Since(a.startedAt), a.active.Load()))
		}
	}
}

// emit pushes a log line to every connected WebSocket client.
func (a *App) emit(level, msg string) {
	a.wsHub.BroadcastJSON(telemetry.NewLogLine(component, level, msg))
}
