package ctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/large-farva/satcal/internal/catalog"
	"github.com/large-farva/satcal/internal/config"
	"github.com/large-farva/satcal/internal/tle"
)

// TLEOptions configures the tle command.
type TLEOptions struct {
	Norad   int
	File    string
	Refresh bool
	JSON    bool
	Config  config.Config
	Out     io.Writer
}

// tleInfo is what the tle command reports about one element set.
type tleInfo struct {
	Name           string  `json:"name"`
	Catalog        int     `json:"catalog"`
	Classification string  `json:"classification"`
	IntlDesignator string  `json:"intl_designator"`
	Epoch          string  `json:"epoch"`
	AgeDays        float64 `json:"age_days"`
	Inclination    float64 `json:"inclination_deg"`
	RAAN           float64 `json:"raan_deg"`
	Eccentricity   float64 `json:"eccentricity"`
	ArgPerigee     float64 `json:"arg_perigee_deg"`
	MeanAnomaly    float64 `json:"mean_anomaly_deg"`
	MeanMotion     float64 `json:"mean_motion_rev_per_day"`
	PeriodMinutes  float64 `json:"period_minutes"`
	BStar          float64 `json:"bstar"`
	RevNumber      int     `json:"rev_number"`
	Source         string  `json:"source"`
	CachePath      string  `json:"cache_path,omitempty"`
	Line1          string  `json:"line1"`
	Line2          string  `json:"line2"`
}

// TLEInfo loads an element set from a file or the catalog cache and shows
// its parsed fields and age.
func TLEInfo(ctx context.Context, opts TLEOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if (opts.Norad == 0) == (opts.File == "") {
		return fmt.Errorf("give exactly one of --norad or --tle-file")
	}

	var (
		es        *tle.ElementSet
		source    string
		cachePath string
	)
	if opts.File != "" {
		b, err := os.ReadFile(opts.File)
		if err != nil {
			return err
		}
		es, err = tle.ParseText(string(b))
		if err != nil {
			return fmt.Errorf("%s: %w", opts.File, err)
		}
		source = "file"
	} else {
		cfg := opts.Config
		store := catalog.NewStore(cfg.Catalog.URLTemplate, cfg.Catalog.DataRoot, cfg.Catalog.RefreshHours)
		fetch := store.FetchSource
		if opts.Refresh {
			fetch = store.Refresh
		}
		var src catalog.Source
		var err error
		es, src, err = fetch(ctx, opts.Norad)
		if err != nil {
			return err
		}
		source = string(src)
		cachePath = store.CachePath(opts.Norad)
	}

	info := describe(es, time.Now())
	info.Source = source
	info.CachePath = cachePath

	if opts.JSON {
		return writeJSON(opts.Out, info)
	}

	w := opts.Out
	fmt.Fprintln(w)
	fmt.Fprintln(w, header("  ELEMENT SET"))
	fmt.Fprintln(w, "  "+strings.Repeat("─", 50))
	row := func(k, v string) { fmt.Fprintf(w, "  %-14s %s\n", k+":", v) }
	row("Name", info.Name)
	row("Catalog", fmt.Sprintf("%05d (%s)", info.Catalog, info.Classification))
	row("Designator", info.IntlDesignator)
	age := colorize(green, fmt.Sprintf("%.1f days", info.AgeDays))
	if info.AgeDays > 14 || info.AgeDays < -1 {
		age = colorize(yellow, fmt.Sprintf("%.1f days", info.AgeDays))
	}
	row("Epoch", info.Epoch+"  "+age)
	row("Inclination", fmt.Sprintf("%.4f°", info.Inclination))
	row("RAAN", fmt.Sprintf("%.4f°", info.RAAN))
	row("Eccentricity", fmt.Sprintf("%.7f", info.Eccentricity))
	row("Arg perigee", fmt.Sprintf("%.4f°", info.ArgPerigee))
	row("Mean anomaly", fmt.Sprintf("%.4f°", info.MeanAnomaly))
	row("Mean motion", fmt.Sprintf("%.8f rev/day (period %.2f min)", info.MeanMotion, info.PeriodMinutes))
	row("B*", fmt.Sprintf("%g", info.BStar))
	row("Source", info.Source)
	if info.CachePath != "" {
		row("Cache", info.CachePath)
	}
	fmt.Fprintln(w)
	return nil
}

func describe(es *tle.ElementSet, now time.Time) tleInfo {
	period := 0.0
	if es.MeanMotion > 0 {
		period = 1440 / es.MeanMotion
	}
	return tleInfo{
		Name:           es.Name,
		Catalog:        es.CatalogNumber,
		Classification: es.Classification,
		IntlDesignator: es.IntlDesignator,
		Epoch:          es.EpochTime().Format(time.RFC3339Nano),
		AgeDays:        now.Sub(es.EpochTime()).Hours() / 24,
		Inclination:    es.Inclination,
		RAAN:           es.RAAN,
		Eccentricity:   es.Eccentricity,
		ArgPerigee:     es.ArgPerigee,
		MeanAnomaly:    es.MeanAnomaly,
		MeanMotion:     es.MeanMotion,
		PeriodMinutes:  period,
		BStar:          es.BStar,
		RevNumber:      es.RevNumber,
		Line1:          es.Line1,
		Line2:          es.Line2,
	}
}
