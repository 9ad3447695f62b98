// Satcald is the satcal tracking daemon.
//
// It loads configuration, starts the HTTP/WebSocket server, and computes
// ground tracks submitted to POST /api/track. Shutdown is handled gracefully
// on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/large-farva/satcal/internal/app"
	"github.com/large-farva/satcal/internal/config"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/satcal/satcal.toml", "Path to config TOML")
		envFile    = pflag.String("env-file", ".env", "Optional .env file with SATCAL_* overrides")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
	)
	pflag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "satcald: env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "satcald: config load failed: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logging, os.Stdout)
	logger.Info("starting", "version", app.Version, "config", *configPath)

	a := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("satcald failed", "err", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
