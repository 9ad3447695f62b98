// Package config handles loading, defaulting, and validation of the satcal
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
//
// Values are layered: built-in defaults, then the TOML file, then SATCAL_*
// environment variables (optionally read from a .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/satcal/internal/geodesy"
	"github.com/large-farva/satcal/internal/sgp4"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Logging LoggingConfig `toml:"logging" json:"logging"`
	Server  ServerConfig  `toml:"server"  json:"server"`
	Track   TrackConfig   `toml:"track"   json:"track"`
	Geodesy GeodesyConfig `toml:"geodesy" json:"geodesy"`
	Catalog CatalogConfig `toml:"catalog" json:"catalog"`
}

type LoggingConfig struct {
	Level  string `toml:"level"  json:"level"`
	Format string `toml:"format" json:"format"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type TrackConfig struct {
	Workers                int     `toml:"workers"                  json:"workers"`
	ParallelThreshold      int     `toml:"parallel_threshold"       json:"parallel_threshold"`
	ProgressEvery          int     `toml:"progress_every"           json:"progress_every"`
	DefaultIntervalSeconds float64 `toml:"default_interval_seconds" json:"default_interval_seconds"`
	MaxSamples             int     `toml:"max_samples"              json:"max_samples"`
	Gravity                string  `toml:"gravity"                  json:"gravity"`
}

type GeodesyConfig struct {
	Ellipsoid string `toml:"ellipsoid" json:"ellipsoid"`
}

type CatalogConfig struct {
	URLTemplate  string `toml:"url_template"  json:"url_template"`
	DataRoot     string `toml:"data_root"     json:"data_root"`
	RefreshHours int    `toml:"refresh_hours" json:"refresh_hours"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8080",
		},
		Track: TrackConfig{
			Workers:                0,
			ParallelThreshold:      256,
			ProgressEvery:          1000,
			DefaultIntervalSeconds: 60,
			MaxSamples:             5_000_000,
			Gravity:                "wgs72",
		},
		Geodesy: GeodesyConfig{
			Ellipsoid: "wgs84",
		},
		Catalog: CatalogConfig{
			URLTemplate:  "https://celestrak.org/NORAD/elements/gp.php?CATNR=%d&FORMAT=tle",
			DataRoot:     "/var/lib/satcal",
			RefreshHours: 24,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults,
// applies the environment overlay, and validates the result. A missing file
// is not an error; the defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := toml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Variables that are already set win. A
// missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overrides fields from SATCAL_* variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("SATCAL_BIND", &cfg.Server.Bind)
	str("SATCAL_LOG_LEVEL", &cfg.Logging.Level)
	str("SATCAL_LOG_FORMAT", &cfg.Logging.Format)
	str("SATCAL_ELLIPSOID", &cfg.Geodesy.Ellipsoid)
	str("SATCAL_GRAVITY", &cfg.Track.Gravity)
	str("SATCAL_DATA_ROOT", &cfg.Catalog.DataRoot)
	str("SATCAL_CATALOG_URL", &cfg.Catalog.URLTemplate)
	if err := num("SATCAL_WORKERS", &cfg.Track.Workers); err != nil {
		return err
	}
	return num("SATCAL_MAX_SAMPLES", &cfg.Track.MaxSamples)
}

func validate(cfg Config) error {
	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if f := cfg.Logging.Format; f != "text" && f != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", f)
	}
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	if cfg.Track.Workers < 0 {
		return errors.New("track.workers must be >= 0")
	}
	if cfg.Track.ProgressEvery < 1 {
		return errors.New("track.progress_every must be >= 1")
	}
	if !(cfg.Track.DefaultIntervalSeconds > 0) {
		return errors.New("track.default_interval_seconds must be > 0")
	}
	if cfg.Track.MaxSamples < 1 {
		return errors.New("track.max_samples must be >= 1")
	}
	if _, err := sgp4.GravityByName(cfg.Track.Gravity); err != nil {
		return fmt.Errorf("track.gravity: %w", err)
	}
	if _, err := geodesy.EllipsoidByName(cfg.Geodesy.Ellipsoid); err != nil {
		return fmt.Errorf("geodesy.ellipsoid: %w", err)
	}
	if !strings.Contains(cfg.Catalog.URLTemplate, "%d") {
		return errors.New("catalog.url_template must contain %d for the catalog number")
	}
	if cfg.Catalog.DataRoot == "" {
		return errors.New("catalog.data_root must not be empty")
	}
	if cfg.Catalog.RefreshHours < 1 {
		return errors.New("catalog.refresh_hours must be >= 1")
	}
	return nil
}

// Ellipsoid resolves the configured reference ellipsoid.
func (c Config) Ellipsoid() geodesy.Ellipsoid {
	e, err := geodesy.EllipsoidByName(c.Geodesy.Ellipsoid)
	if err != nil {
		return geodesy.WGS84
	}
	return e
}

// Gravity resolves the configured SGP4 gravity model.
func (c Config) Gravity() sgp4.Gravity {
	g, err := sgp4.GravityByName(c.Track.Gravity)
	if err != nil {
		return sgp4.WGS72
	}
	return g
}
