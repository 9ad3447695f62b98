package ctl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/large-farva/satcal/internal/config"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	var cfg config.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(header("  DAEMON CONFIGURATION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))
	printConfig(cfg)
	fmt.Println()

	return nil
}

// printConfig renders cfg section by section in TOML order.
func printConfig(cfg config.Config) {
	section := func(name string) {
		fmt.Printf("\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Printf("    %-26s %v\n", colorize(dim, key+":"), val)
	}

	section("logging")
	field("level", cfg.Logging.Level)
	field("format", cfg.Logging.Format)

	section("server")
	field("bind", cfg.Server.Bind)

	section("track")
	workers := any(cfg.Track.Workers)
	if cfg.Track.Workers == 0 {
		workers = "0 (all CPUs)"
	}
	field("workers", workers)
	field("parallel_threshold", cfg.Track.ParallelThreshold)
	field("progress_every", cfg.Track.ProgressEvery)
	field("default_interval_seconds", cfg.Track.DefaultIntervalSeconds)
	field("max_samples", cfg.Track.MaxSamples)
	field("gravity", cfg.Track.Gravity)

	section("geodesy")
	field("ellipsoid", cfg.Geodesy.Ellipsoid)

	section("catalog")
	field("url_template", cfg.Catalog.URLTemplate)
	field("data_root", cfg.Catalog.DataRoot)
	field("refresh_hours", cfg.Catalog.RefreshHours)
}
