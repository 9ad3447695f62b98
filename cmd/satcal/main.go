// Satcal is the command-line client. It computes satellite ground tracks
// locally, submits them to a running satcald, and queries or watches the
// daemon over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/large-farva/satcal/internal/config"
	"github.com/large-farva/satcal/internal/ctl"
)

func main() {
	var (
		host       = pflag.StringP("host", "H", "http://127.0.0.1:8080", "satcald URL (e.g. http://192.168.8.1:8080)")
		jsonOut    = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter     = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,log)")
		configPath = pflag.StringP("config", "c", "/etc/satcal/satcal.toml", "Config TOML for local runs (missing file = defaults)")
		envFile    = pflag.String("env-file", ".env", "Optional .env file with SATCAL_* overrides")
		verbose    = pflag.BoolP("verbose", "v", false, "Log debug output to stderr")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --days are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadConfig := func() config.Config {
		if err := config.LoadDotEnv(*envFile); err != nil {
			fail(err)
		}
		cfg, err := config.Load(*configPath)
		if err != nil {
			fail(err)
		}
		if *verbose {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "warn"
		}
		return cfg
	}

	var err error
	switch cmd {
	// ── Ground tracks ─────────────────────────────────────────────
	case "track", "submit":
		cfg := loadConfig()
		opts := ctl.TrackOptions{
			JSON:   *jsonOut,
			Config: cfg,
			Logger: config.NewLogger(cfg.Logging, os.Stderr),
		}
		fs := trackFlags(cmd, &opts)
		if perr := fs.Parse(subArgs); perr != nil {
			fmt.Fprintln(os.Stderr, "error:", perr)
			os.Exit(2)
		}
		if fs.Changed("interval") {
			v, _ := fs.GetFloat64("interval")
			opts.IntervalSeconds = &v
		}
		if cmd == "track" {
			err = ctl.Track(ctx, opts)
		} else {
			err = ctl.Submit(ctx, *host, opts)
		}

	case "tle":
		opts := ctl.TLEOptions{JSON: *jsonOut, Config: loadConfig()}
		fs := pflag.NewFlagSet("tle", pflag.ContinueOnError)
		fs.IntVar(&opts.Norad, "norad", 0, "NORAD catalog number to look up")
		fs.StringVar(&opts.File, "tle-file", "", "Read the element set from a file")
		fs.BoolVar(&opts.Refresh, "refresh", false, "Bypass the cache and fetch from the network")
		if perr := fs.Parse(subArgs); perr != nil {
			fmt.Fprintln(os.Stderr, "error:", perr)
			os.Exit(2)
		}
		err = ctl.TLEInfo(ctx, opts)

	// ── Daemon queries ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "reload":
		err = ctl.Reload(*host, *jsonOut)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
		types := fs.StringSlice("filter", *filter, "Event types to show")
		if perr := fs.Parse(subArgs); perr != nil {
			fmt.Fprintln(os.Stderr, "error:", perr)
			os.Exit(2)
		}
		err = ctl.Watch(ctx, *host, ctl.WatchOptions{
			Filter: *types,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fail(err)
	}
}

func trackFlags(name string, opts *ctl.TrackOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&opts.Line1, "line1", "", "First element line")
	fs.StringVar(&opts.Line2, "line2", "", "Second element line")
	fs.StringVar(&opts.TLEFile, "tle-file", "", "Read the element set from a file (2 or 3 lines)")
	fs.IntVar(&opts.Norad, "norad", 0, "Look up the element set by NORAD catalog number")
	fs.StringVar(&opts.Name, "name", "", "Satellite name for the output")
	fs.IntVar(&opts.Span.Days, "days", 0, "Window length: days")
	fs.IntVar(&opts.Span.Hours, "hours", 0, "Window length: hours")
	fs.IntVar(&opts.Span.Minutes, "minutes", 0, "Window length: minutes")
	fs.IntVar(&opts.Span.Seconds, "seconds", 0, "Window length: seconds")
	fs.Float64("interval", 0, "Seconds between samples (default from config)")
	fs.StringVar(&opts.Start, "start", "", "Window start, RFC 3339 (default now, UTC)")
	return fs
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Print(`
  satcal - satellite ground-track calculator

  USAGE
    satcal [flags] <command> [command-flags]

  COMMANDS (ground tracks)
    track           Compute a ground track locally and print one line per sample
    submit          Compute a ground track on satcald and print the result
    tle             Show a parsed element set from a file or the catalog

  COMMANDS (daemon)
    status          Show daemon state, uptime, and run counts
    health          Check daemon and component health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration
    reload          Reload the daemon configuration from disk

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8080)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)
    -c, --config PATH   Config TOML for local runs
        --env-file PATH .env file with SATCAL_* overrides (default: .env)
    -v, --verbose       Debug logging on stderr

  COMMAND FLAGS
    track, submit:
        --line1 L --line2 L     Element lines
        --tle-file PATH         Element set file (alternative to lines)
        --norad N               Catalog number (alternative to lines)
        --name NAME             Satellite name for the output
        --days/--hours/--minutes/--seconds N
                                Window length (total must be > 0)
        --interval SECS         Seconds between samples
        --start TIME            Window start, RFC 3339 (default: now)

    tle:
        --norad N               Catalog number
        --tle-file PATH         Element set file
        --refresh               Ignore the cache

  EXAMPLES
    satcal track --norad 25544 --hours 2 --interval 30
    satcal track --tle-file iss.tle --days 1 --json
    satcal --host http://192.168.8.1:8080 submit --norad 25544 --minutes 90
    satcal tle --norad 25544
    satcal status
    satcal watch --filter progress,run_complete

`)
}
